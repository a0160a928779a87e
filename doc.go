// Package corral implements the edge-enforcement layer of a parallel
// task-graph runtime: incounters and outsets, the two halves of every DAG
// edge, plus the task abstraction and control-flow constructs (async,
// finish, future/force, parallel_for) built purely on top of them.
//
// A task is a small resumable state machine, not an opaque closure: it
// carries a continuation label and is driven forward by an external
// work-stealing scheduler (see the Scheduler interface and its backends
// in sched.go) every time its incounter activates. Edges between
// tasks are never represented directly; they are always materialised as
// one outset entry on the source paired with one incounter increment on
// the target.
//
// Three interchangeable "direct" edge-set families are provided — simple
// (fetch-add counter + Treiber-stack outset), distributed (SNZI-tree
// counter + tree outset) and dyntree (dynamic-tree incounter/outset pair)
// — plus a fourth, port-passing, family in which participating tasks hold
// persistent forkable ports into the edge sets they may affect instead of
// hashing down from a root on every call. The choice of family is fixed
// per run via Config.
package corral
