/*
Package ports defines the driven ports (interfaces) for the Tourguide engine.

These interfaces decouple the orchestration logic from browsers, storage backends
and remote services, so the same core runs against playwright, a fake page in tests,
Redis or plain files.

# Key Interfaces

  - SessionStore: persists the tutorial session of a tab (tutorialSteps + currentStepIndex).
  - DistributedLocker: coordinates session writes across replicas.
  - Page: DOM access used by the content agent (locate, draw, measure).
  - Capturer: raster capture of the visible viewport, used by the background fallback.
  - StepSource: turns an action and a software name into tutorial steps (remote service).
  - Catalog: named tutorials kept on disk or in memory.
  - RegionDetector: finds the target of a step on a captured screenshot.
*/
package ports
