package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"DBAdminDO/internal/engines"
	"DBAdminDO/internal/pkg/apperrors"
	"DBAdminDO/internal/validation"
)

// ExecuteQuery runs ad-hoc query text after the destructive-statement check
func (g *Gateway) ExecuteQuery(ctx context.Context, req Request, query string) Result {
	return g.write(ctx, req, "query", "Query failed", func(t *target) (string, Payload, error) {
		if err := validation.ValidateQuery(query, g.limits.MaxQueryLength); err != nil {
			return "", nil, err
		}
		executor, ok := capability[engines.QueryExecutor](t)
		if !ok {
			return "", nil, unsupportedOperation("Query execution", t)
		}

		start := time.Now()
		result, err := executor.ExecuteQuery(ctx, t.server, t.handle, query)
		if err != nil {
			return "", nil, err
		}
		result.ExecutionTime = time.Since(start).Seconds()

		return "", Payload{
			"columns":        result.Columns,
			"rows":           result.Rows,
			"row_count":      result.RowCount,
			"execution_time": result.ExecutionTime,
		}, nil
	})
}

// CreateRow inserts one row
func (g *Gateway) CreateRow(ctx context.Context, req Request, table string, data map[string]any) Result {
	return g.write(ctx, req, "create_row", "Failed to create row", func(t *target) (string, Payload, error) {
		editor, err := rowEditor(t, table)
		if err != nil {
			return "", nil, err
		}
		if err := editor.CreateRow(ctx, t.server, t.handle, table, data); err != nil {
			return "", nil, err
		}
		return "Row created successfully", nil, nil
	})
}

// UpdateRow updates the row addressed by primaryKey
func (g *Gateway) UpdateRow(ctx context.Context, req Request, table string, primaryKey, data map[string]any) Result {
	return g.write(ctx, req, "update_row", "Failed to update row", func(t *target) (string, Payload, error) {
		editor, err := rowEditor(t, table)
		if err != nil {
			return "", nil, err
		}
		if len(primaryKey) == 0 {
			return "", nil, apperrors.Invalid("primary key is required")
		}
		if err := editor.UpdateRow(ctx, t.server, t.handle, table, primaryKey, data); err != nil {
			return "", nil, err
		}
		return "Row updated successfully", nil, nil
	})
}

// DeleteRow deletes the row addressed by primaryKey
func (g *Gateway) DeleteRow(ctx context.Context, req Request, table string, primaryKey map[string]any) Result {
	return g.write(ctx, req, "delete_row", "Failed to delete row", func(t *target) (string, Payload, error) {
		editor, err := rowEditor(t, table)
		if err != nil {
			return "", nil, err
		}
		if len(primaryKey) == 0 {
			return "", nil, apperrors.Invalid("primary key is required")
		}
		if err := editor.DeleteRow(ctx, t.server, t.handle, table, primaryKey); err != nil {
			return "", nil, err
		}
		return "Row deleted successfully", nil, nil
	})
}

func rowEditor(t *target, table string) (engines.RowEditor, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	editor, ok := capability[engines.RowEditor](t)
	if !ok {
		return nil, unsupportedOperation("Row editing", t)
	}
	return editor, nil
}

// CreateUser creates a login
func (g *Gateway) CreateUser(ctx context.Context, req Request, username, password string) Result {
	return g.write(ctx, req, "create_user", "Failed to create user", func(t *target) (string, Payload, error) {
		if !validation.IsValidUsername(username) {
			return "", nil, apperrors.Invalid("invalid username: %s", username)
		}
		if !validation.IsValidPassword(password) {
			return "", nil, apperrors.Invalid("invalid password")
		}
		manager, ok := capability[engines.UserManager](t)
		if !ok {
			return "", nil, unsupportedOperation("User management", t)
		}
		if err := manager.CreateUser(ctx, t.server, t.handle, username, password); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("User %s created successfully", username), nil, nil
	})
}

// DeleteUser drops a login. System users and the handle's admin user are refused
// whatever the caller's role.
func (g *Gateway) DeleteUser(ctx context.Context, req Request, username string) Result {
	return g.write(ctx, req, "delete_user", "Failed to delete user", func(t *target) (string, Payload, error) {
		if !validation.IsValidUsername(username) {
			return "", nil, apperrors.Invalid("invalid username: %s", username)
		}
		manager, ok := capability[engines.UserManager](t)
		if !ok {
			return "", nil, unsupportedOperation("User management", t)
		}
		if engines.IsProtected(manager, username) || isAdminUser(t.handle, username) {
			return "", nil, engines.ProtectedError(username)
		}
		if err := manager.DeleteUser(ctx, t.server, t.handle, username); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("User %s deleted successfully", username), nil, nil
	})
}

// KillConnection terminates a client session
func (g *Gateway) KillConnection(ctx context.Context, req Request, id string) Result {
	return g.write(ctx, req, "kill_connection", "Failed to kill connection", func(t *target) (string, Payload, error) {
		if strings.TrimSpace(id) == "" {
			return "", nil, engines.InvalidConnectionID(id)
		}
		manager, ok := capability[engines.ConnectionManager](t)
		if !ok {
			return "", nil, unsupportedOperation("Connection management", t)
		}
		if err := manager.KillConnection(ctx, t.server, t.handle, id); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Connection %s terminated", id), nil, nil
	})
}

// SetExtension enables or disables an allow-listed extension
func (g *Gateway) SetExtension(ctx context.Context, req Request, name string, enabled bool) Result {
	return g.write(ctx, req, "set_extension", "Failed to update extension", func(t *target) (string, Payload, error) {
		if !validation.IsValidExtensionName(name) {
			return "", nil, apperrors.Invalid("extension %s is not allowed", name)
		}
		manager, ok := capability[engines.ExtensionManager](t)
		if !ok {
			return "", nil, unsupportedOperation("Extensions", t)
		}
		if err := manager.SetExtension(ctx, t.server, t.handle, name, enabled); err != nil {
			return "", nil, err
		}
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		return fmt.Sprintf("Extension %s %s", name, state), Payload{"enabled": enabled}, nil
	})
}

// Maintenance runs vacuum or analyze on a table, or the whole database when table is empty
func (g *Gateway) Maintenance(ctx context.Context, req Request, operation, table string) Result {
	return g.write(ctx, req, "maintenance", "Maintenance failed", func(t *target) (string, Payload, error) {
		if err := validation.ValidateMaintenanceOperation(operation); err != nil {
			return "", nil, err
		}
		if table != "" {
			if err := checkTable(table); err != nil {
				return "", nil, err
			}
		}
		maintainer, ok := capability[engines.Maintainer](t)
		if !ok {
			return "", nil, unsupportedOperation("Maintenance", t)
		}
		message, err := maintainer.RunMaintenance(ctx, t.server, t.handle, strings.ToLower(operation), table)
		if err != nil {
			return "", nil, err
		}
		return message, nil, nil
	})
}

// CreateIndex creates an index on a collection
func (g *Gateway) CreateIndex(ctx context.Context, req Request, collection string, spec engines.IndexSpec) Result {
	return g.write(ctx, req, "create_index", "Failed to create index", func(t *target) (string, Payload, error) {
		if err := checkTable(collection); err != nil {
			return "", nil, err
		}
		if len(spec.Fields) == 0 {
			return "", nil, apperrors.Invalid("at least one index field is required")
		}
		store, ok := capability[engines.DocumentStore](t)
		if !ok {
			return "", nil, unsupportedOperation("Indexes", t)
		}
		name, err := store.CreateIndex(ctx, t.server, t.handle, collection, spec)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Index %s created", name), Payload{"index": name}, nil
	})
}

// SetKey writes a string value, expiring after ttlSeconds when positive
func (g *Gateway) SetKey(ctx context.Context, req Request, key, value string, ttlSeconds int64) Result {
	return g.write(ctx, req, "set_key", "Failed to set key", func(t *target) (string, Payload, error) {
		if !validation.IsValidKeyName(key) {
			return "", nil, apperrors.Invalid("invalid key name")
		}
		if ttlSeconds < 0 {
			return "", nil, apperrors.Invalid("ttl must not be negative")
		}
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return "", nil, unsupportedOperation("Key editing", t)
		}
		if err := store.SetKey(ctx, t.server, t.handle, key, value, ttlSeconds); err != nil {
			return "", nil, err
		}
		return "Key saved", nil, nil
	})
}

// DeleteKey removes a key
func (g *Gateway) DeleteKey(ctx context.Context, req Request, key string) Result {
	return g.write(ctx, req, "delete_key", "Failed to delete key", func(t *target) (string, Payload, error) {
		if !validation.IsValidKeyName(key) {
			return "", nil, apperrors.Invalid("invalid key name")
		}
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return "", nil, unsupportedOperation("Key editing", t)
		}
		deleted, err := store.DeleteKey(ctx, t.server, t.handle, key)
		if err != nil {
			return "", nil, err
		}
		if !deleted {
			return "", nil, fmt.Errorf("key %q: %w", key, apperrors.ErrNotFound)
		}
		return "Key deleted", nil, nil
	})
}

// Flush removes every key of the current database or of all databases
func (g *Gateway) Flush(ctx context.Context, req Request, scope string) Result {
	return g.write(ctx, req, "flush", "Flush failed", func(t *target) (string, Payload, error) {
		s := engines.FlushScope(strings.ToLower(scope))
		if s != engines.FlushDB && s != engines.FlushAll {
			return "", nil, apperrors.Invalid("invalid flush scope %q: use db or all", scope)
		}
		store, ok := capability[engines.KeyValueStore](t)
		if !ok {
			return "", nil, unsupportedOperation("Flush", t)
		}
		if err := store.Flush(ctx, t.server, t.handle, s); err != nil {
			return "", nil, err
		}
		if s == engines.FlushAll {
			return "All databases flushed", nil, nil
		}
		return "Database flushed", nil, nil
	})
}

// RegeneratePassword stores a new admin password and requests a container
// restart so it takes effect. The restart runs in the background.
func (g *Gateway) RegeneratePassword(ctx context.Context, req Request) Result {
	return g.write(ctx, req, "regenerate_password", "Failed to regenerate password", func(t *target) (string, Payload, error) {
		password, err := GeneratePassword(g.limits.PasswordLength)
		if err != nil {
			return "", nil, err
		}
		if err := g.deps.Credentials.UpdatePassword(ctx, t.handle, password); err != nil {
			return "", nil, err
		}
		t.handle.Credentials.AdminPassword = password

		if err := g.deps.Restarter.Request(t.handle); err != nil {
			return "", nil, fmt.Errorf("password saved but restart could not be requested: %w", err)
		}
		return "Password regenerated, restart requested", Payload{"restart_requested": true}, nil
	})
}
