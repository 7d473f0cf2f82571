package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dshills/postvault/pkg/types"
)

// Image returns the stored bytes for filename. found is false when no image
// has that name.
func (r *Repository) Image(ctx context.Context, filename string) (data []byte, found bool, err error) {
	if err := types.ValidateFilename(filename); err != nil {
		return nil, false, err
	}

	err = r.runner.Run(ctx, func(ctx context.Context, conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, "SELECT data FROM images WHERE filename = ?", filename).Scan(&data)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil
		case err != nil:
			return fmt.Errorf("failed to read image %q: %w", filename, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}
