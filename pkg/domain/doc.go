/*
Package domain contains the core domain models of the Tourguide engine.

It defines the entities shared by the three execution contexts (background orchestrator,
content agent and UI panel). The package is kept pure and free of I/O, persistence
or browser concerns.

# Key Entities

  - Step: one unit of guidance (instruction text plus the on-page target descriptor).
  - Region: a document-absolute rectangle locating a step's target.
  - Session: the persisted step list and progress of a tutorial in one tab.
  - Viewport / PageMetrics: the visible area of the page and its scroll offsets.
*/
package domain
