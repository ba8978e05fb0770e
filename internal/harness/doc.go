// Package harness runs repository scenarios: YAML files describing a flow
// of operations against a fresh repository and the events and state that
// flow must produce.
//
// # Scenario Format
//
//	name: remove_from_list
//	description: "Removing a listed entry detaches it"
//	seed: seeds/basic.cue          # optional CUE seed
//	setup:
//	  - op: create_context
//	    bind: ctx
//	flow:
//	  - op: create_entry
//	    args: { context: $ctx, graph_type: List }
//	    bind: folder
//	  - op: create_entry
//	    as: bob
//	    args: { context: $ctx }
//	    expect: { error: AUTHORIZATION }
//	assertions:
//	  - type: event_order
//	    kinds: [EntryCreated]
//	  - type: children
//	    list: $folder
//	    entries: []
//
// Steps act as admin unless "as" names a user. A string argument "$name"
// is replaced by the value an earlier step bound with "bind".
//
// # Operations
//
// create_context, create_user, create_group, create_entry, remove_entry,
// add_child, remove_child, grant, set_quota, write_data, set_metadata,
// move_entry, copy_entry and reindex.
//
// # Assertion Types
//
//   - event_order: kinds appear in the flow trace in this relative order
//   - event_count: a kind, optionally for one entry, appears exactly N times
//   - fill_level: a context holds exactly N payload bytes
//   - children: a list holds exactly these entries, in order
//   - rights: a principal holds exactly these access properties on an entry
//
// # Deterministic Testing
//
// Every scenario runs against its own in-memory statement store with a
// deterministic clock (testutil.DeterministicClock) and sequential event
// ids (testutil.SequentialIDs). Only events fired by flow steps are traced,
// numbered from 1, so traces are stable enough for golden comparison.
package harness
