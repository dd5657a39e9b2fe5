package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdchat/parley/types"
)

func TestNewProvider(t *testing.T) {
	t.Run("empty catalog is fatal", func(t *testing.T) {
		_, err := NewProvider(Catalog{})
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
	})

	t.Run("setting with one persona is fatal", func(t *testing.T) {
		_, err := NewProvider(Catalog{{Personas: []types.Persona{{Name: "hermit"}}}})
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
	})

	t.Run("default catalog is valid", func(t *testing.T) {
		_, err := NewProvider(DefaultCatalog())
		require.NoError(t, err)
	})
}

func TestGetContext(t *testing.T) {
	t.Run("same seed yields identical sequences", func(t *testing.T) {
		a, err := NewProvider(DefaultCatalog(), WithSeed(42))
		require.NoError(t, err)
		b, err := NewProvider(DefaultCatalog(), WithSeed(42))
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			ca, err := a.GetContext()
			require.NoError(t, err)
			cb, err := b.GetContext()
			require.NoError(t, err)
			assert.Equal(t, ca, cb, "selection %d diverged", i)
		}
	})

	t.Run("contexts are independent copies", func(t *testing.T) {
		p, err := NewProvider(DefaultCatalog(), WithSeed(7))
		require.NoError(t, err)

		first, err := p.GetContext()
		require.NoError(t, err)
		firstName := first.Personas[0].Name
		first.Personas[0].Name = "mutated"
		if first.Location != nil {
			first.Location.Name = "mutated"
		}

		// A later selection of the same setting must be unaffected.
		for i := 0; i < 20; i++ {
			c, err := p.GetContext()
			require.NoError(t, err)
			assert.NotEqual(t, "mutated", c.Personas[0].Name)
			if c.Location != nil {
				assert.NotEqual(t, "mutated", c.Location.Name)
			}
			_ = firstName
		}
	})

	t.Run("dataset tag is stamped", func(t *testing.T) {
		p, err := NewProvider(DefaultCatalog(), WithSeed(1), WithDatasetTag("pilot-run"))
		require.NoError(t, err)
		c, err := p.GetContext()
		require.NoError(t, err)
		assert.Equal(t, "pilot-run", c.DatasetTag)
	})

	t.Run("default tag", func(t *testing.T) {
		p, err := NewProvider(DefaultCatalog(), WithSeed(1))
		require.NoError(t, err)
		c, err := p.GetContext()
		require.NoError(t, err)
		assert.Equal(t, DefaultDatasetTag, c.DatasetTag)
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "catalog.yaml")
		content := `
- personas:
    - name: ferryman
      persona: I pole the ferry across the strait, rain or shine.
    - name: tax collector
      persona: I count coins for the crown and everyone hates me for it.
  location:
    name: Ferry landing
    description: A weathered wooden dock on the river's east bank.
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		catalog, err := LoadCatalog(path)
		require.NoError(t, err)
		require.Len(t, catalog, 1)
		assert.Equal(t, "ferryman", catalog[0].Personas[0].Name)
		require.NotNil(t, catalog[0].Location)
		assert.Equal(t, "Ferry landing", catalog[0].Location.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid settings rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("- personas:\n    - name: alone\n"), 0o644))

		_, err := LoadCatalog(path)
		require.Error(t, err)
		assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
	})
}
