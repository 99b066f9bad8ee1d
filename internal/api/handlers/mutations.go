package handlers

import (
	"DBAdminDO/internal/engines"

	"github.com/gin-gonic/gin"
)

type queryBody struct {
	Query string `json:"query" binding:"required"`
}

// ExecuteQuery runs ad-hoc query text
func (h *DatabaseHandler) ExecuteQuery(c *gin.Context) {
	var body queryBody
	if !h.bindWrite(c, "query", &body) {
		return
	}
	Respond(c, h.gw.ExecuteQuery(c.Request.Context(), request(c), body.Query))
}

type rowBody struct {
	PrimaryKey map[string]any `json:"primary_key"`
	Data       map[string]any `json:"data"`
}

// CreateRow inserts a row
func (h *DatabaseHandler) CreateRow(c *gin.Context) {
	var body struct {
		Data map[string]any `json:"data" binding:"required"`
	}
	if !h.bindWrite(c, "create_row", &body) {
		return
	}
	Respond(c, h.gw.CreateRow(c.Request.Context(), request(c), c.Param("table"), body.Data))
}

// UpdateRow updates the row addressed by primary_key
func (h *DatabaseHandler) UpdateRow(c *gin.Context) {
	var body rowBody
	if !h.bindWrite(c, "update_row", &body) {
		return
	}
	Respond(c, h.gw.UpdateRow(c.Request.Context(), request(c), c.Param("table"), body.PrimaryKey, body.Data))
}

// DeleteRow deletes the row addressed by primary_key
func (h *DatabaseHandler) DeleteRow(c *gin.Context) {
	var body rowBody
	if !h.bindWrite(c, "delete_row", &body) {
		return
	}
	Respond(c, h.gw.DeleteRow(c.Request.Context(), request(c), c.Param("table"), body.PrimaryKey))
}

type userBody struct {
	Username string `json:"username" binding:"required,dbusername"`
	Password string `json:"password" binding:"required"`
}

// CreateUser creates a login
func (h *DatabaseHandler) CreateUser(c *gin.Context) {
	var body userBody
	if !h.bindWrite(c, "create_user", &body) {
		return
	}
	Respond(c, h.gw.CreateUser(c.Request.Context(), request(c), body.Username, body.Password))
}

// DeleteUser drops a login
func (h *DatabaseHandler) DeleteUser(c *gin.Context) {
	Respond(c, h.gw.DeleteUser(c.Request.Context(), request(c), c.Param("username")))
}

// KillConnection terminates a client session
func (h *DatabaseHandler) KillConnection(c *gin.Context) {
	Respond(c, h.gw.KillConnection(c.Request.Context(), request(c), c.Param("pid")))
}

// SetExtension enables or disables an extension
func (h *DatabaseHandler) SetExtension(c *gin.Context) {
	var body struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if !h.bindWrite(c, "set_extension", &body) {
		return
	}
	Respond(c, h.gw.SetExtension(c.Request.Context(), request(c), c.Param("name"), *body.Enabled))
}

// RunMaintenance runs vacuum or analyze
func (h *DatabaseHandler) RunMaintenance(c *gin.Context) {
	var body struct {
		Operation string `json:"operation" binding:"required"`
		Table     string `json:"table" binding:"omitempty,tablename"`
	}
	if !h.bindWrite(c, "maintenance", &body) {
		return
	}
	Respond(c, h.gw.Maintenance(c.Request.Context(), request(c), body.Operation, body.Table))
}

// CreateIndex creates a collection index
func (h *DatabaseHandler) CreateIndex(c *gin.Context) {
	var body struct {
		Fields []struct {
			Field     string `json:"field" binding:"required,fieldpath"`
			Direction int    `json:"direction" binding:"omitempty,oneof=1 -1"`
		} `json:"fields" binding:"required,min=1,dive"`
		Name   string `json:"name"`
		Unique bool   `json:"unique"`
	}
	if !h.bindWrite(c, "create_index", &body) {
		return
	}

	spec := engines.IndexSpec{Name: body.Name, Unique: body.Unique}
	for _, f := range body.Fields {
		dir := f.Direction
		if dir == 0 {
			dir = 1
		}
		spec.Fields = append(spec.Fields, engines.IndexField{Field: f.Field, Direction: dir})
	}
	Respond(c, h.gw.CreateIndex(c.Request.Context(), request(c), c.Param("collection"), spec))
}

// SetKey writes a key
func (h *DatabaseHandler) SetKey(c *gin.Context) {
	var body struct {
		Value *string `json:"value" binding:"required"`
		TTL   int64   `json:"ttl" binding:"gte=0"`
	}
	if !h.bindWrite(c, "set_key", &body) {
		return
	}
	Respond(c, h.gw.SetKey(c.Request.Context(), request(c), c.Param("key"), *body.Value, body.TTL))
}

// DeleteKey removes a key
func (h *DatabaseHandler) DeleteKey(c *gin.Context) {
	Respond(c, h.gw.DeleteKey(c.Request.Context(), request(c), c.Param("key")))
}

// Flush removes keys from one or all databases
func (h *DatabaseHandler) Flush(c *gin.Context) {
	var body struct {
		Scope string `json:"scope" binding:"required,oneof=db all"`
	}
	if !h.bindWrite(c, "flush", &body) {
		return
	}
	Respond(c, h.gw.Flush(c.Request.Context(), request(c), body.Scope))
}

// RegeneratePassword rotates the admin password and requests a restart
func (h *DatabaseHandler) RegeneratePassword(c *gin.Context) {
	Respond(c, h.gw.RegeneratePassword(c.Request.Context(), request(c)))
}
