package vectorutils

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/reels/pkg/vector"
	"github.com/papercomputeco/reels/pkg/vector/chroma"
	"github.com/papercomputeco/reels/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	TargetURL    string

	// DB and Dimensions configure the embedded sqlite-vec provider; they
	// are ignored for remote providers.
	DB         *sql.DB
	Dimensions uint

	Logger *zap.Logger
}

// NewVectorDriver builds the configured vector backend. The embedded
// provider shares the store's database handle.
func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite", "":
		if o.DB == nil {
			return nil, fmt.Errorf("embedded vector provider requires an open store")
		}
		return sqlitevec.New(o.DB, o.Dimensions, o.Logger)
	case "chroma":
		return chroma.New(chroma.Config{
			URL: o.TargetURL,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
