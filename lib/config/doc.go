// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the download
// engine, the bundle manager, and the dlcache command.
//
// Configuration is loaded from a single file specified by either the
// DLCACHE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no file discovery and no environment
// variable overrides of individual values.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production requires an https url_base.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${DLCACHE_ROOT}, and ${VAR:-default} patterns are expanded.
// The default subdirectory paths are written in terms of
// ${DLCACHE_ROOT}, so setting only paths.root relocates everything.
package config
