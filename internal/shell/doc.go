// Package shell runs external installer and test commands.
//
// Executor abstracts how a command is run so stage orchestration does not care
// whether it talks to the operating system (OSExecutor), only prints what it
// would do (DryRunExecutor) or replays scripted outcomes in tests (FakeExecutor).
package shell
