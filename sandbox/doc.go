// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs a component's build commands in an isolated,
// deterministic environment using bubblewrap (bwrap) Linux namespaces.
//
// [BuildEnvironment] computes the exact variable set a command sees from
// the component descriptor and the global settings. It never reads
// process state; the two host facts it needs (the host PATH and whether
// ccache invalidation files exist) come in through [Host]. Staged builds
// run chrooted in the assembly root and see host-absolute search paths;
// every other mode runs on the real root with search paths rebased
// under the assembly root.
//
// [PlanBinds] decides which host directories appear inside the
// container, and [ContainerConfigFor] composes the container root,
// working directory, mounts and writable paths. A [Containerizer] turns
// that into an argument vector; [BwrapContainerizer] is the production
// implementation. The environment is passed to bwrap explicitly
// (--clearenv plus --setenv), so running a command never depends on the
// invoking process's environment.
//
// [Executor] runs one command at a time, appending the command, its
// resolved argument vector and its combined output to the component's
// build log. A non-zero exit is returned as a [*CommandError] for the
// caller to act on.
//
// [Scope] brackets one build attempt: it prepares the assembly root
// (dev, proc and tmp directories, a null device node), changes into it,
// and restores the working directory and environment on Close. Only one
// scope may be open per process.
//
// [Validator] and [Capabilities] perform pre-flight checks of the host.
package sandbox
