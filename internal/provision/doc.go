// Package provision resolves and installs a matrix entry's dependencies through
// exactly one channel.
//
// The binary channel creates a named package-manager environment, installs the
// base linear-algebra packages, registers community channels and bulk-installs
// the manifest. Dependencies named in the override table are removed from the
// bulk install and installed with the source installer inside the same
// environment. The source channel creates a virtual environment and installs
// the manifest unfiltered.
//
// Planning is pure; Execute runs a plan through a shell.Executor and stops at
// the first failing step.
package provision
