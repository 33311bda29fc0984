package http

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tradejournal/internal/domain"
)

// bind decodes the request body into v. Decoding failures are malformed payloads;
// field rules are checked by the use case.
func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return nil
}

// pathID parses the :id parameter. An id that is not a UUID cannot name an existing record.
func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}
