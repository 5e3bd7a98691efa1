// Package grt implements the generic runtime object model.
//
// This package contains:
//   - The Value interface and its scalar, container and object implementations
//   - MetaClass reflection (members, methods, signals, attributes)
//   - The Runtime, which owns the class registry, change tracking and the object arena
//   - The UndoManager and the UndoAction hierarchy
//   - CopyContext for deep and shallow copies of object graphs
//
// Objects are created through their MetaClass and carry a GUID identity.
// Owner back-references are weak; cross-object references never keep an
// object alive, so dropping the last strong reference to a graph is enough
// to release it. Runtime.Arena indexes live objects by GUID.
//
// Mutations of objects that are globally tracked (reachable from a root
// marked with MarkGlobal) are recorded by the Runtime's UndoManager while
// change tracking is active.
package grt
