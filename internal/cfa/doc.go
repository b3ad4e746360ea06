// Package cfa provides the control-flow automaton consumed by the verifier.
//
// A CFA is a directed graph whose nodes are program locations and whose edges
// carry one operation each (an assignment, a havoc, an assumption or a skip).
// The engine treats edges as opaque tokens: it hands them back to the abstract
// domain and to the decision procedure's path encoder.
//
// The in-memory Graph implements CFA and is what the task loader builds.
package cfa
