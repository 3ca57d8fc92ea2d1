/*
Package tourguide overlays step-by-step tutorials on live web pages.

Each browser tab is served by two contexts that talk over a message bus:
the background context (an orchestrator owning the tutorial session of the tab)
and the content context (an agent living in the page, locating targets and drawing
highlights and callouts). A third context, the panel, starts and stops tutorials.

When a step target cannot be found in the DOM, the background context captures the
viewport and asks a region detection service to find it on the image. The returned
coordinates are drawn like any DOM match.

# Usage

	b := bus.NewMemory()
	sessions := session.NewManager(memory.NewStore())

	svc := tourguide.New(b, sessions,
		tourguide.WithDetector(client),
		tourguide.WithStepSource(client),
	)
	defer svc.Close()

	// page implements ports.Page (and ports.Capturer for the image fallback).
	if err := svc.AttachTab("tab-1", page); err != nil {
		log.Fatal(err)
	}

	status, err := svc.Panel().InitiateQuery(ctx, "tab-1", "export a report", "Metabase")
*/
package tourguide
