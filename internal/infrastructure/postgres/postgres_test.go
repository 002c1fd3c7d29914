package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{
			"postgres://app:s3cret@db:5432/users?sslmode=disable",
			"postgres://app:***@db:5432/users?sslmode=disable",
		},
		{
			"postgres://app@db:5432/users",
			"postgres://app@db:5432/users",
		},
		{
			"host=db user=app password=s3cret dbname=users",
			"host=db user=app password=*** dbname=users",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, maskDSN(tt.dsn))
	}
}
