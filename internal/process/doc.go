// Package process supervises the beacon as a child process.
//
// The beacon exits when its network link does not come up, the same way the
// device it models reboots. The supervisor plays the part of the reboot: it
// starts the child, restarts it after any non-zero exit, and forwards a
// graceful shutdown to the whole process group.
//
// Features:
//   - Start/stop of the child with SIGTERM then SIGKILL
//   - Restart after a fixed delay, optionally bounded
//   - Child stdout/stderr passed through or captured into the log
//   - Context-based cancellation for clean shutdown
//
// Example usage:
//
//	sup := process.NewManager(process.FromConfig(cfg.Supervisor, exe, []string{"run"}))
//	sup.SetLogger(log)
//
//	if err := sup.Start(ctx); err != nil {
//	    return err
//	}
//	defer sup.Stop()
//	<-sup.Done()
package process
