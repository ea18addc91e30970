//go:build !cgo

package cypher

import (
	"errors"

	"go.uber.org/zap"

	"github.com/dusk-indust/graphogm/internal/graph"
)

// ErrEmbeddedUnavailable is returned when the binary was built without CGO,
// which the embedded Kuzu driver needs.
var ErrEmbeddedUnavailable = errors.New("cypher: kuzu requires a cgo build")

// OpenEmbedded always fails in builds without CGO.
func OpenEmbedded(string, *zap.Logger) (Driver, error) {
	return nil, graph.Exec("connect", ErrEmbeddedUnavailable)
}
