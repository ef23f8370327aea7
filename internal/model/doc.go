// Package model defines the persisted node model shared by every
// component of the update-move conflict resolver: layered nodes,
// move records, conflict skeletons, work items and notification
// records.
//
// Types here carry no store or filesystem behavior; they are the
// vocabulary the store, walker, editor, conflict engine, layer
// replacer and bump engine all speak.
package model
