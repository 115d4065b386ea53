package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "droidrun",
		Short: "Drive an Android device toward a goal with a language model",
		Long: `droidrun decomposes a natural-language goal into device tasks, executes
them through adb and the companion portal app, and reports a structured
verdict. A planner proposes tasks, per-task executors run a think-act-observe
loop, and an optional critic reviews finished tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newDevicesCommand())
	return root
}
