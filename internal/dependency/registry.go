// Package dependency holds the process-wide, immutable tables that encode
// which event types must reach a terminal status before another event of
// the same operation may proceed, plus the predicate that evaluates them.
//
// The tables are exposed as typed lookup functions rather than mutable
// maps: nothing in this package ever registers or removes an entry at
// runtime, unlike a registry such as work.Registry that accumulates
// entries as the program starts up.
package dependency

import "github.com/jtejido-quollio/qdic-assets/internal/eventmodel"

// deps maps an operation to the ordered sequence of event types in its
// pipeline. Order matters: see AllDependenciesCompleted's
// dependency-prefix rule.
var deps = map[eventmodel.Operation][]eventmodel.EventType{
	eventmodel.OpUpdateUserGroup:            {},
	eventmodel.OpDeleteUserGroup:            {},
	eventmodel.OpCreateUserGroup:            {},
	eventmodel.OpUpdateAssetGroup:           {},
	eventmodel.OpDeleteAssetGroup:           {},
	eventmodel.OpListAssetGroupMembersTree:  {},

	eventmodel.OpDeleteTagGroup: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
	},
	eventmodel.OpUpdateTagCategory: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateCustomCategories,
	},
	eventmodel.OpDeleteTagCategory: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
		eventmodel.EventTypeDeleteMissingComments,
	},
	eventmodel.OpTagUpdateTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateCustomCategories,
	},
	eventmodel.OpTagDeleteTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
		eventmodel.EventTypeDeleteMissingComments,
	},
	eventmodel.OpUpdateRuleSet: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpDeleteRuleSet: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
	},
	eventmodel.OpCreateRule: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpUpdateRule: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpDeleteRule: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpApplyRule: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpCreatePropertySet: {
		eventmodel.EventTypeUpdateUserGroupPropertySets,
	},
	eventmodel.OpUpdatePropertySet: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpDeletePropertySet: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeDeleteMissingComments,
		eventmodel.EventTypeUpdateUserGroupPropertySets,
	},
	eventmodel.OpCreateProperty: {
		eventmodel.EventTypeUpdateUserGroupProperty,
	},
	eventmodel.OpPropertyUpdateProperty: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpDeleteProperty: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateBiDatas,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeDeleteMissingComments,
		eventmodel.EventTypeUpdateUserGroupProperty,
	},
	eventmodel.OpExportData:   {},
	eventmodel.OpDeleteComment: {},
	eventmodel.OpDeleteAssets: {
		eventmodel.EventTypeDeleteAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeDeleteMissingComments,
	},

	// deprecated, kept for parity with records already in flight.
	eventmodel.OpUpdateMetadata: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpAssetUpdateTag: {}, // deprecated
	eventmodel.OpUpdateAssetDetails: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpAssetUpdateProperty: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpExtTagDeleteTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
	},
	eventmodel.OpExtUpdateParentTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateCustomCategories,
	},
	eventmodel.OpExtDeleteParentTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
		eventmodel.EventTypeUpdateCustomCategories,
		eventmodel.EventTypeDeleteMissingComments,
	},
	eventmodel.OpExtUpdateChildTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpExtDeleteChildTag: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
	},
	eventmodel.OpExtDeleteAssets: {
		eventmodel.EventTypeDeleteAssets,
		eventmodel.EventTypeUpdateTags,
		eventmodel.EventTypeUpdateUsers,
	},
	eventmodel.OpExtUpdateMetadata: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateAssets,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpExtAssetUpdateTag: {},
	eventmodel.OpExtAssetUpdateProperty: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpAssetsBulkUpdate: {},
	eventmodel.OpTagsBulkUpdate:   {},
	eventmodel.OpRulesBulkUpdate:  {},
	eventmodel.OpBulkAssets: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpBulkTags: {
		eventmodel.EventTypeUpdateRules,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpBulkRules: {
		eventmodel.EventTypeApplyRule,
		eventmodel.EventTypeApplyRuleBiData,
		eventmodel.EventTypeUpdateTags,
	},
	eventmodel.OpUpdateWorkflowTask: {},
	eventmodel.OpDeleteWorkflowTask: {},
}

type pair struct {
	op eventmodel.Operation
	et eventmodel.EventType
}

// optional holds the (operation, event_type) pairs that are allowed to be
// absent from storage without blocking the dependent event.
var optional = map[pair]struct{}{
	{eventmodel.OpBulkRules, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpBulkRules, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpBulkAssets, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpBulkAssets, eventmodel.EventTypeApplyRuleBiData}: {},

	{eventmodel.OpExtUpdateMetadata, eventmodel.EventTypeUpdateAssets}: {},
	{eventmodel.OpAssetUpdateProperty, eventmodel.EventTypeApplyRule}:  {},
	{eventmodel.OpAssetUpdateProperty, eventmodel.EventTypeApplyRuleBiData}: {},

	{eventmodel.OpUpdateMetadata, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpUpdateMetadata, eventmodel.EventTypeApplyRuleBiData}: {}, // deprecated
	{eventmodel.OpUpdateMetadata, eventmodel.EventTypeUpdateAssets}:    {}, // deprecated
	{eventmodel.OpUpdateAssetDetails, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpUpdateAssetDetails, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpUpdateAssetDetails, eventmodel.EventTypeUpdateAssets}:    {},

	{eventmodel.OpDeleteProperty, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpCreateProperty, eventmodel.EventTypeUpdateUserGroupProperty}: {},
	{eventmodel.OpDeleteProperty, eventmodel.EventTypeUpdateAssets}:       {},
	{eventmodel.OpDeleteProperty, eventmodel.EventTypeApplyRuleBiData}:    {},
	{eventmodel.OpDeleteProperty, eventmodel.EventTypeUpdateBiDatas}:      {},
	{eventmodel.OpDeleteProperty, eventmodel.EventTypeUpdateUserGroupProperty}: {},
	{eventmodel.OpPropertyUpdateProperty, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpPropertyUpdateProperty, eventmodel.EventTypeApplyRuleBiData}: {},

	{eventmodel.OpCreatePropertySet, eventmodel.EventTypeUpdateUserGroupPropertySets}: {},
	{eventmodel.OpDeletePropertySet, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpDeletePropertySet, eventmodel.EventTypeUpdateAssets}:       {},
	{eventmodel.OpDeletePropertySet, eventmodel.EventTypeApplyRuleBiData}:    {},
	{eventmodel.OpDeletePropertySet, eventmodel.EventTypeUpdateBiDatas}:      {},
	{eventmodel.OpDeletePropertySet, eventmodel.EventTypeUpdateUserGroupPropertySets}: {},
	{eventmodel.OpUpdatePropertySet, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpUpdatePropertySet, eventmodel.EventTypeApplyRuleBiData}: {},

	{eventmodel.OpApplyRule, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpApplyRule, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpDeleteRule, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpDeleteRule, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpUpdateRule, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpUpdateRule, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpCreateRule, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpCreateRule, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpDeleteRuleSet, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpDeleteRuleSet, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpUpdateRuleSet, eventmodel.EventTypeApplyRule}:        {},
	{eventmodel.OpUpdateRuleSet, eventmodel.EventTypeApplyRuleBiData}: {},

	{eventmodel.OpDeleteTagGroup, eventmodel.EventTypeUpdateAssets}:    {},
	{eventmodel.OpDeleteTagGroup, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpDeleteTagGroup, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpDeleteTagGroup, eventmodel.EventTypeUpdateBiDatas}:   {},
	{eventmodel.OpUpdateTagCategory, eventmodel.EventTypeUpdateAssets}:    {},
	{eventmodel.OpUpdateTagCategory, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpUpdateTagCategory, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpUpdateTagCategory, eventmodel.EventTypeUpdateBiDatas}:   {},
	{eventmodel.OpDeleteTagCategory, eventmodel.EventTypeUpdateAssets}:    {},
	{eventmodel.OpDeleteTagCategory, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpDeleteTagCategory, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpDeleteTagCategory, eventmodel.EventTypeUpdateBiDatas}:   {},
	{eventmodel.OpTagUpdateTag, eventmodel.EventTypeUpdateAssets}:    {},
	{eventmodel.OpTagUpdateTag, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpTagUpdateTag, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpTagUpdateTag, eventmodel.EventTypeUpdateBiDatas}:   {},
	{eventmodel.OpTagDeleteTag, eventmodel.EventTypeUpdateAssets}:    {},
	{eventmodel.OpTagDeleteTag, eventmodel.EventTypeApplyRule}:       {},
	{eventmodel.OpTagDeleteTag, eventmodel.EventTypeApplyRuleBiData}: {},
	{eventmodel.OpTagDeleteTag, eventmodel.EventTypeUpdateBiDatas}:   {},

	{eventmodel.OpUpdateWorkflowTask, eventmodel.EventTypeUpdateWorkflowSubtasks}:            {},
	{eventmodel.OpDeleteWorkflowTask, eventmodel.EventTypeDeleteWorkflowTaskNotifications}: {},
}

// Of returns the ordered dependency event types for an operation. A
// previously-unregistered operation has no dependencies.
func Of(op eventmodel.Operation) []eventmodel.EventType {
	return deps[op]
}

// IsOptional reports whether (operation, eventType) is allowed to be
// absent from storage without blocking.
func IsOptional(op eventmodel.Operation, et eventmodel.EventType) bool {
	_, ok := optional[pair{op: op, et: et}]
	return ok
}
