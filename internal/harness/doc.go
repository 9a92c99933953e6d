// Package harness runs sync scenarios against the real coordinator.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_id: run-1
//	project:
//	  id: p1
//	  location: LOCAL
//	corpora: store            # store | container | none
//	links:
//	  - { id: L1, sources: ["40001001001"], targets: ["40001001001"] }
//	remote:
//	  fail: { CreateProject: permission_denied }
//	  pull:
//	    - { id: L9, sources: ["40001001001"], targets: [] }
//	expect:
//	  error: PERMISSION_DENIED
//	assertions:
//	  - type: states
//	    states: [REFRESHING_PERMISSIONS, SWITCH_TO_PROJECT, SYNCING_PROJECT, FAILED, IDLE]
//	  - type: final_project
//	    expect: { location: LOCAL }
//
// # Assertion Types
//
//   - states: the progress stream matches exactly
//   - remote_order: remote methods were called in this relative order
//   - remote_count: a remote method was called exactly N times
//   - final_project: stored project fields after the run
//   - journal_count: pending journal entries after the run
//   - links: ids of the stored links after the run
//
// # Deterministic Testing
//
// Every scenario runs with a fixed clock, a fixed run id and a fresh
// database, so traces can be compared against golden files.
package harness
