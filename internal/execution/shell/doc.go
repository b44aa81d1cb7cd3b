// Package shell spawns an external process and runs its standard
// streams concurrently.
//
// A Shell is configured with the command, working directory, environment
// overlay and redirect policies, then sources and sinks are attached to
// the streams:
//
//	out, err := shell.New(log, "sh", "-c", "cat").
//		SetInputLines([]string{"hello", "world"}).
//		SetErrorString(func(s string) { log.Info(s) }).
//		RunToLines(ctx)
//
// Every attached stream is served by its own goroutine. The input feeder,
// the error collector and extra processors are ancillary tasks; each one
// completes a Promise. The output sink runs in a separate task, started by
// Output.StartOutput, whose promise by default resolves only after all
// ancillary tasks have completed. If one of them failed, the output
// promise is rejected with the combined failures.
//
// Bounded waits never kill the child unless Config.KillOnTimeout is set;
// the process handle stays available through Shell.Process.
package shell
