package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtejido-quollio/qdic-assets/internal/assetstore"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// NewDeleteAssets builds the handler that cascades an asset delete over
// the closure table. The event body is the root asset id; descendants
// down to depth 2 are collected and removed together with the root.
// Deeper layers cascade through the depth-2 nodes' own delete events
// when those fire.
func NewDeleteAssets(assets assetstore.Store, log zerolog.Logger) HandlerFunc {
	return func(ctx context.Context, ev eventmodel.Event) error {
		log.Info().
			Str("event_id", ev.ID).
			Str("event_type", string(eventmodel.EventTypeDeleteAssets)).
			Msg("Processing asset delete")

		if ev.Operation != eventmodel.OpDeleteAssets {
			return fmt.Errorf("%w: %s", ErrUnsupportedOperation, ev.Operation)
		}

		assetID := ev.Body

		descendants, err := assets.Descendants(ctx, assetID, 0, 2)
		if err != nil {
			return fmt.Errorf("handlers: fetch descendants of %s: %w", assetID, err)
		}

		ids := make([]string, 0, len(descendants)+1)
		for _, a := range descendants {
			ids = append(ids, a.ID)
		}
		ids = append(ids, assetID)

		deleted, err := assets.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("handlers: delete %d assets: %w", len(ids), err)
		}

		log.Info().
			Str("event_id", ev.ID).
			Str("asset_id", assetID).
			Int("requested", len(ids)).
			Int("deleted", deleted).
			Msg("Deleted asset subtree")
		return nil
	}
}
