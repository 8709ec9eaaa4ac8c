package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSearchPath(t *testing.T) {
	got, err := withSearchPath("postgres://ith:secret@db:5432/ith?sslmode=disable", "ith_test_a")
	require.NoError(t, err)
	assert.Equal(t, "postgres://ith:secret@db:5432/ith?search_path=ith_test_a&sslmode=disable", got)

	got, err = withSearchPath("host=db dbname=ith", "ith_test_b")
	require.NoError(t, err)
	assert.Equal(t, "host=db dbname=ith search_path=ith_test_b", got)
}

func TestDialects_SchemaApplied(t *testing.T) {
	for name, open := range Dialects() {
		t.Run(name, func(t *testing.T) {
			db := open(t)
			status, err := db.MigrationStatus(context.Background())
			require.NoError(t, err)
			assert.Empty(t, status.Pending)
			assert.NotEmpty(t, status.Current)
		})
	}
}
