// Package config loads and watches the pimonitor configuration file.
//
// Top-level types:
//   - Settings{General, Monitors, Actions, Listeners}: full config tree
//   - General: log_level, log_file, log_format, poll_interval, dispatch,
//     metrics_addr
//   - ComponentSpec: one monitors/actions entry (name, type, options).
//     Decode(v) copies the options into a typed struct.
//   - Listener: name, monitor, action
//
// Load(path, envFile, includeOSEnv) reads a YAML (.yaml/.yml) or TOML (.toml)
// file, resolves ${VAR} references from the optional dotenv secrets file and,
// when includeOSEnv is set, the process environment, applies defaults
// (ERROR level, json format, 60s poll interval, listeners dispatch) and
// validates required fields. YAML sections keep declaration order; TOML
// sections are sorted by name.
//
// Source.Watch(ctx, running, onChange) uses fsnotify on the directories of
// the config and env files, settles bursts of events into one reload and
// reports only reloads whose Compare diff against the previous good load is
// non-empty.
package config
