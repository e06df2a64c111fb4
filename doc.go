// Package sluice is a shell-style dataflow runtime: it lets a Go program
// express Unix-pipeline-shaped computations — external subprocesses,
// in-process transforms, containers, and files — as composable Pipeline
// values evaluated lazily.
//
// A Pipeline is built declaratively from stages (sources, filters, sinks)
// and has no side effects until realised: Stream() iterates it, Run()
// drives it to completion against a trailing sink, Into(sink) does both.
// Cmd is the external-command stage, participating in all three roles —
// spawned as a Producer when used as a source, with its stdin and stdout
// spliced to neighbouring stages when used as a filter, and as a Consumer
// when used as a sink.
//
//	var lines []string
//	err := sluice.Command("echo", "Hello, World!").
//		Then(sluice.Command("rev")).
//		Into(&lines)
package sluice
