package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/curseddelta/curseddelta/internal/engine"
)

const selectedAccountKey = "selected_account"

var configKeys = []string{
	"addr", "mail_pw", "displayname", "selfstatus", "mail_server", "mail_port",
	"send_server", "send_port", "bcc_self", "mdns_enabled", "configured_addr",
}

func (e *Engine) GetAllAccountIDs(ctx context.Context) ([]int, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.queryIDs(ctx, `SELECT id FROM accounts ORDER BY id`)
}

func (e *Engine) GetSelectedAccountID(ctx context.Context) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	var value string
	err := e.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, selectedAccountKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read selected account: %w", err)
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid selected account %q: %w", value, err)
	}
	return id, nil
}

func (e *Engine) SelectAccount(ctx context.Context, acc int) error {
	if err := e.requireAccount(ctx, acc); err != nil {
		return err
	}
	return e.setSetting(ctx, e.db, selectedAccountKey, strconv.Itoa(acc))
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e *Engine) setSetting(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// AddAccount creates an unconfigured account with its special contacts.
func (e *Engine) AddAccount(ctx context.Context) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	var id int
	err := e.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO accounts (created_at) VALUES (?)`, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to insert account: %w", err)
		}
		last, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read account id: %w", err)
		}
		id = int(last)

		specials := []struct {
			id   int
			addr string
			name string
		}{
			{engine.ContactSelf, "", "Me"},
			{engine.ContactInfo, "info@localhost", "Info"},
			{engine.ContactDevice, "device@localhost", "Device Messages"},
		}
		for _, c := range specials {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO contacts (account_id, id, address, display_name) VALUES (?, ?, ?, ?)
			`, id, c.id, c.addr, c.name); err != nil {
				return fmt.Errorf("failed to insert special contact: %w", err)
			}
		}

		var selected int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings WHERE key = ?`, selectedAccountKey).Scan(&selected)
		if err != nil {
			return fmt.Errorf("failed to read selected account: %w", err)
		}
		if selected == 0 {
			return e.setSetting(ctx, tx, selectedAccountKey, strconv.Itoa(id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info().Int("account_id", id).Msg("account added")
	return id, nil
}

func (e *Engine) IsConfigured(ctx context.Context, acc int) (bool, error) {
	v, err := e.GetConfig(ctx, acc, "configured")
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (e *Engine) GetConfig(ctx context.Context, acc int, key string) (string, error) {
	if err := e.requireAccount(ctx, acc); err != nil {
		return "", err
	}
	if key == engine.ConfigKeysOption {
		return strings.Join(configKeys, " "), nil
	}
	var value string
	err := e.db.QueryRowContext(ctx, `
		SELECT value FROM account_config WHERE account_id = ? AND key = ?
	`, acc, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config %s: %w", key, err)
	}
	return value, nil
}

func (e *Engine) SetConfig(ctx context.Context, acc int, key, value string) error {
	if err := e.requireAccount(ctx, acc); err != nil {
		return err
	}
	return e.transaction(ctx, func(tx *sql.Tx) error {
		return setConfigTx(ctx, tx, acc, key, value)
	})
}

func setConfigTx(ctx context.Context, tx *sql.Tx, acc int, key, value string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_config (account_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(account_id, key) DO UPDATE SET value = excluded.value
	`, acc, key, value); err != nil {
		return fmt.Errorf("failed to store config %s: %w", key, err)
	}

	var column string
	switch key {
	case "addr", "configured_addr":
		column = "address"
	case "displayname":
		column = "display_name"
	default:
		return nil
	}
	query := fmt.Sprintf(`UPDATE contacts SET %s = ? WHERE account_id = ? AND id = ?`, column)
	if _, err := tx.ExecContext(ctx, query, value, acc, engine.ContactSelf); err != nil {
		return fmt.Errorf("failed to update self contact: %w", err)
	}
	return nil
}

// Configure marks the account usable once an address and password are set.
// There is no server to log into; the credentials are only checked for
// presence.
func (e *Engine) Configure(ctx context.Context, acc int) error {
	addr, err := e.GetConfig(ctx, acc, "addr")
	if err != nil {
		return err
	}
	pw, err := e.GetConfig(ctx, acc, "mail_pw")
	if err != nil {
		return err
	}
	if addr == "" || pw == "" {
		return fmt.Errorf("account %d needs addr and mail_pw: %w", acc, engine.ErrNotConfigured)
	}
	err = e.transaction(ctx, func(tx *sql.Tx) error {
		if err := setConfigTx(ctx, tx, acc, "configured_addr", addr); err != nil {
			return err
		}
		return setConfigTx(ctx, tx, acc, "configured", "1")
	})
	if err != nil {
		return err
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventInfo, Msg: "configured " + addr})
	return nil
}

func (e *Engine) StartIO(ctx context.Context, acc int) error {
	ok, err := e.IsConfigured(ctx, acc)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("account %d: %w", acc, engine.ErrNotConfigured)
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventInfo, Msg: "local engine started"})
	return nil
}

func (e *Engine) requireAccount(ctx context.Context, acc int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	var n int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, acc).Scan(&n); err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %d: %w", acc, engine.ErrNotFound)
	}
	return nil
}

func (e *Engine) queryIDs(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}
