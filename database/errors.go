package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var lockingUpdate = clause.Locking{Strength: "UPDATE"}

// translate maps driver errors onto the domain taxonomy. what names the
// entity for not-found and duplicate messages.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var re *relayerr.Error
	if errors.As(err, &re) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return relayerr.NotFound(what, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return relayerr.AlreadyExists(what, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return relayerr.Orphan(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return relayerr.Transient(err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return relayerr.Transient(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return relayerr.Transient(err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"), strings.Contains(msg, "SQLSTATE 23505"):
		return relayerr.AlreadyExists(what, err)
	case strings.Contains(msg, "FOREIGN KEY constraint"), strings.Contains(msg, "SQLSTATE 23503"):
		return relayerr.Orphan(err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "SQLSTATE 08"), strings.Contains(msg, "bad connection"):
		return relayerr.Transient(err)
	}
	return err
}
