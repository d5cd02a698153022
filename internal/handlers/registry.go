// Package handlers routes dependency-resolved events to the code that
// applies their side effects. Each handler is idempotent: a requeued
// event may run the same handler again after a partial failure.
package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jtejido-quollio/qdic-assets/internal/assetstore"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// ErrUnknownEventType is wrapped by Dispatch when no handler is
// registered for an event's type. It flows into the processor's retry
// path like any other handler error.
var ErrUnknownEventType = fmt.Errorf("handlers: unknown event type")

// ErrUnsupportedOperation is returned by a handler when the event's
// operation is not one it can act on.
var ErrUnsupportedOperation = fmt.Errorf("handlers: unsupported operation")

// HandlerFunc applies one event's side effects. Returning nil marks the
// event completed; returning an error sends it to the retry path.
type HandlerFunc func(ctx context.Context, ev eventmodel.Event) error

// Registry is the dispatch table keyed by event type. It is populated
// once at startup and read-only afterwards.
type Registry struct {
	handlers map[eventmodel.EventType]HandlerFunc
	log      zerolog.Logger
}

// NewRegistry creates an empty dispatch table.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[eventmodel.EventType]HandlerFunc),
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

// Register binds a handler to an event type, replacing any previous
// binding.
func (r *Registry) Register(et eventmodel.EventType, fn HandlerFunc) {
	r.handlers[et] = fn
}

// Dispatch routes ev to its handler.
func (r *Registry) Dispatch(ctx context.Context, ev eventmodel.Event) error {
	fn, ok := r.handlers[ev.EventType]
	if !ok {
		r.log.Error().
			Str("event_id", ev.ID).
			Str("event_type", string(ev.EventType)).
			Msg("No handler registered for event type")
		return fmt.Errorf("%w: %s", ErrUnknownEventType, ev.EventType)
	}
	return fn(ctx, ev)
}

// RegisterDefaults wires the full production dispatch table: the asset
// subtree delete plus a pass-through for every other event type the
// dependency tables reference. The pass-throughs stand in for catalog
// mutations (tag propagation, rule application, workflow bookkeeping)
// that are owned by other services; here they complete immediately so
// operation chains keep flowing.
func RegisterDefaults(r *Registry, assets assetstore.Store) {
	r.Register(eventmodel.EventTypeDeleteAssets, NewDeleteAssets(assets, r.log))

	passthrough := []eventmodel.EventType{
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeExportData,
		eventmodel.EventTypeDeleteMissingComments,
		eventmodel.EventTypeDeleteAllComments,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateUserGroup,
		eventmodel.EventTypeUpdateUserGroupPropertySets,
		eventmodel.EventTypeUpdateUserGroupProperty,
		eventmodel.EventTypeDeleteUserGroup,
		eventmodel.EventTypeUpdateWorkflowSubtasks,
		eventmodel.EventTypeDeleteWorkflowTaskNotifications,
		eventmodel.EventTypeSetWorkflowTaskStatusToCanceled,
		eventmodel.EventTypeDeleteTagWorkflowTask,
		eventmodel.EventTypeDeleteTagCategoryWorkflowTask,
		eventmodel.EventTypeUpdateTagWorkflowTask,
		eventmodel.EventTypeUpdateTagCategoryWorkflowTask,
		eventmodel.EventTypeCreateTagWorkflowTask,
		eventmodel.EventTypeCreateTagCategoryWorkflowTask,
		eventmodel.EventTypeUpdateAssetGroup,
		eventmodel.EventTypeDeleteAssetGroup,
		eventmodel.EventTypeListAssetGroupMembersTree,
		eventmodel.EventTypeApproveUpsertTagDraft,
		eventmodel.EventTypeApproveDeleteTagDraft,
		eventmodel.EventTypeApproveUpsertTagCategoryDraft,
		eventmodel.EventTypeApproveDeleteTagCategoryDraft,
		eventmodel.EventTypeApproveDeleteTagDependentDraft,
		eventmodel.EventTypeApproveAssetDraft,
		eventmodel.EventTypeRejectDraft,
		eventmodel.EventTypeBulkAssets,
		eventmodel.EventTypeBulkTags,
		eventmodel.EventTypeBulkRules,
		eventmodel.EventTypeSendAlertNotification,
	}
	for _, et := range passthrough {
		r.Register(et, newPassthrough(et, r.log))
	}
}

func newPassthrough(et eventmodel.EventType, log zerolog.Logger) HandlerFunc {
	return func(_ context.Context, ev eventmodel.Event) error {
		log.Debug().
			Str("event_id", ev.ID).
			Str("event_type", string(et)).
			Str("operation", string(ev.Operation)).
			Msg("Pass-through handler completed")
		return nil
	}
}
