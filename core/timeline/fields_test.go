package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFieldRegistry(t *testing.T) {
	require.Equal(t, "Stock", FieldStockID.Label())
	require.Equal(t, "Expiration Date", FieldExpiration.Label())
	// unknown kinds fall back to their raw name
	require.Equal(t, "bogus", FieldKind("bogus").Label())

	require.True(t, FieldStockID.ValidFor(ModeInventory))
	require.True(t, FieldStockID.ValidFor(ModeRefrigerator))
	require.False(t, FieldStockID.ValidFor(ModeAttendance))
	require.True(t, FieldEmail.ValidFor(ModeAttendance))
	require.False(t, FieldEmail.ValidFor(ModeCounter))
	require.False(t, FieldKind("bogus").ValidFor(ModeCounter))
}

func TestFields_Merge(t *testing.T) {
	base := Fields{FieldName: "Ada", FieldEmail: "ada@example.com"}

	merged := base.merge(Fields{FieldName: "Ada L."})
	require.Equal(t, "Ada L.", merged[FieldName])
	require.Equal(t, "ada@example.com", merged[FieldEmail])
	// original untouched
	require.Equal(t, "Ada", base[FieldName])

	require.Equal(t, base, base.merge(nil))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PASSAGE_DB_PATH", "/tmp/p.db")
	t.Setenv("PASSAGE_MODE", "inventory")
	t.Setenv("PASSAGE_OVERSTAY_THRESHOLD", "30m")

	c, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/p.db", c.Path)
	require.Equal(t, ModeInventory, c.Mode)
	require.Equal(t, "30m0s", c.OverstayThreshold.String())
	require.Positive(t, c.CommitBudget)

	t.Setenv("PASSAGE_MODE", "bogus")
	_, err = LoadConfig()
	require.Error(t, err)
}
