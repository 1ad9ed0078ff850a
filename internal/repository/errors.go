package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by create-if-absent writes that lost to an existing record.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrIdentityTaken is returned when another organization owns a channel identity.
	ErrIdentityTaken = errors.New("channel identity owned by another organization")
	// ErrTicketKeyTaken is returned when an organization already has a ticket with the same key.
	ErrTicketKeyTaken = errors.New("ticket key already used in organization")
)

const uniqueViolation = "23505"

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isConstraintViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}
