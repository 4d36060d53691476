// Package harness runs replicated-editing scenarios against real models.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: remove_group_race
//	description: "A group removed while a peer adds into it comes back"
//	replicas: [a, b]
//	steps:
//	  - replica: a
//	    op: add_group
//	    args: { name: G }
//	  - sync: {}                        # everyone exchanges everything
//	  - replica: a
//	    op: remove_layer_group
//	    args: { name: G }
//	  - replica: b
//	    op: add_layer
//	    args: { id: L9, group: G }
//	  - sync: { from: b, to: a, order: reverse }
//	assertions:
//	  - type: tree
//	    replica: a
//	    expect: [{ name: G, layers: [L9] }]
//	  - type: converged
//
// # Sync Steps
//
// A sync step delivers the sender's whole log one op at a time. Order
// "forward" (the default) is the log's causal order; "reverse" delivers
// newest first, so the receiver has to buffer until dependencies arrive.
// Omitting from and to exchanges between every pair of replicas.
//
// # Assertion Types
//
//   - tree: the replica's layer tree equals expect (YAML in document shape)
//   - ordered_ids: the flattened layer ids equal expect
//   - layer_exists: the layer store has (or, with exists: false, lacks) id
//   - converged: every replica has the same state hash and nothing pending
//   - error: step N failed with the given error code
//
// A step that fails without a matching error assertion fails the scenario.
//
// # Deterministic Testing
//
// Replica ids come from the scenario and every replica starts empty, so
// the same scenario always produces the same ops, trace and document. That
// is what makes golden comparison (RunWithGolden) possible.
package harness
