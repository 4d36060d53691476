package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/testutil"
)

// sampleDocument is indented canonical JSON, so an export of it is
// byte-identical.
const sampleDocument = `{
  "layerTree": [
    "L1",
    {
      "layers": [
        "L2"
      ],
      "name": "Overlays"
    }
  ],
  "layers": {
    "L1": {
      "name": "Base",
      "parameters": {
        "source": "S1"
      },
      "type": "RasterLayer",
      "visible": true
    },
    "L2": {
      "name": "Roads",
      "type": "VectorLayer",
      "visible": false
    }
  },
  "options": {
    "latitude": 46.5,
    "longitude": 6.6,
    "zoom": 8
  },
  "sources": {
    "S1": {
      "name": "OSM",
      "type": "RasterSource"
    }
  }
}
`

func testRootOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Logger: testutil.Logger(),
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
