// Package portshift implements the port-offset engine: a pure rewrite of
// host-facing ports across the three places they appear in a generated
// tree — devcontainer JSON documents, compose documents, and .env text.
//
// The engine only ever touches the host side of a mapping: a compose
// string "5432:5432" with offset 100 becomes "5532:5432", the container
// side untouched. Values it cannot parse pass through unchanged, and an
// offset of 0 is a true identity transform at every level.
package portshift

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/devstack/internal/merge"
)

// composePortRegex matches the short compose port mapping syntax
// "[ip:]host:container". Only the host group is rewritten.
var composePortRegex = regexp.MustCompile(`^(?:((?:\d{1,3}\.){3}\d{1,3}):)?(\d+):(\d+)$`)

// envPortLineRegex matches an env assignment "NAME=digits". Whether the
// line is offset additionally depends on NAME containing "PORT".
var envPortLineRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(\d+)$`)

// OffsetInt shifts a bare port number.
func OffsetInt(port, offset int) int {
	return port + offset
}

// OffsetComposePort shifts the host side of a compose "[ip:]host:container"
// mapping string. Strings that do not match the syntax are returned
// unchanged — a deliberate pass-through for ranges, variables, and other
// forms this engine does not understand.
func OffsetComposePort(value string, offset int) string {
	m := composePortRegex.FindStringSubmatch(value)
	if m == nil {
		return value
	}

	host, err := strconv.Atoi(m[2])
	if err != nil {
		return value
	}

	shifted := strconv.Itoa(host + offset)
	if m[1] != "" {
		return m[1] + ":" + shifted + ":" + m[3]
	}
	return shifted + ":" + m[3]
}

// OffsetEnvText shifts port-valued assignments in env text. Each line of
// the form NAME=digits where NAME contains "PORT" gets its value offset;
// every other line — comments, blanks, non-numeric values, non-port
// variables — passes through byte for byte.
func OffsetEnvText(text string, offset int) string {
	if offset == 0 {
		return text
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		m := envPortLineRegex.FindStringSubmatch(line)
		if m == nil || !strings.Contains(m[1], "PORT") {
			continue
		}
		value, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		lines[i] = fmt.Sprintf("%s=%d", m[1], value+offset)
	}
	return strings.Join(lines, "\n")
}

// ApplyToConfig returns a copy of a devcontainer document with the offset
// applied to its port-bearing fields:
//
//   - forwardPorts: numbers shift; "service:port" strings shift the port
//   - appPort: numbers shift; "host:container" strings shift the host side
//   - portsAttributes: numeric keys re-key to the shifted port
//
// The input document is never modified. Offset 0 returns an equal copy.
func ApplyToConfig(doc map[string]any, offset int) map[string]any {
	result := merge.CloneDoc(doc)
	if offset == 0 {
		return result
	}

	if fp, ok := result["forwardPorts"].([]any); ok {
		result["forwardPorts"] = offsetForwardPorts(fp, offset)
	}

	switch ap := result["appPort"].(type) {
	case []any:
		result["appPort"] = offsetAppPortEntries(ap, offset)
	case float64:
		result["appPort"] = float64(OffsetInt(int(ap), offset))
	case int:
		result["appPort"] = OffsetInt(ap, offset)
	case string:
		result["appPort"] = OffsetComposePort(ap, offset)
	}

	if attrs, ok := result["portsAttributes"].(map[string]any); ok {
		result["portsAttributes"] = offsetPortsAttributes(attrs, offset)
	}

	return result
}

// offsetForwardPorts shifts forwardPorts entries. Numbers shift directly;
// "service:port" strings keep the service and shift the port.
func offsetForwardPorts(entries []any, offset int) []any {
	out := make([]any, len(entries))
	for i, entry := range entries {
		switch v := entry.(type) {
		case float64:
			out[i] = float64(OffsetInt(int(v), offset))
		case int:
			out[i] = OffsetInt(v, offset)
		case string:
			out[i] = offsetServicePort(v, offset)
		default:
			out[i] = entry
		}
	}
	return out
}

// offsetServicePort shifts the numeric side of a "service:port" string.
// A plain numeric string shifts as a bare port. Anything else passes
// through unchanged.
func offsetServicePort(value string, offset int) string {
	if port, err := strconv.Atoi(value); err == nil {
		return strconv.Itoa(port + offset)
	}

	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return value
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return value
	}
	return parts[0] + ":" + strconv.Itoa(port+offset)
}

// offsetAppPortEntries shifts appPort array entries: numbers as bare
// ports, strings as compose mappings (host side only).
func offsetAppPortEntries(entries []any, offset int) []any {
	out := make([]any, len(entries))
	for i, entry := range entries {
		switch v := entry.(type) {
		case float64:
			out[i] = float64(OffsetInt(int(v), offset))
		case int:
			out[i] = OffsetInt(v, offset)
		case string:
			out[i] = OffsetComposePort(v, offset)
		default:
			out[i] = entry
		}
	}
	return out
}

// offsetPortsAttributes re-keys a portsAttributes map from original to
// shifted port numbers. Non-numeric keys (the "onAutoForward" wildcard
// entry, ranges) are preserved as-is.
func offsetPortsAttributes(attrs map[string]any, offset int) map[string]any {
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		if port, err := strconv.Atoi(key); err == nil {
			out[strconv.Itoa(port+offset)] = value
		} else {
			out[key] = value
		}
	}
	return out
}

// ApplyToCompose returns a copy of a compose document with every service's
// ports entries shifted on the host side. Both the short string syntax and
// the long map syntax (published/target) are handled; YAML integers and
// JSON float64 numbers both count as bare ports. The input is never
// modified, and offset 0 returns an equal copy.
func ApplyToCompose(doc map[string]any, offset int) map[string]any {
	result := merge.CloneDoc(doc)
	if offset == 0 {
		return result
	}

	services, ok := result["services"].(map[string]any)
	if !ok {
		return result
	}

	for _, svc := range services {
		svcMap, ok := svc.(map[string]any)
		if !ok {
			continue
		}
		ports, ok := svcMap["ports"].([]any)
		if !ok {
			continue
		}
		for i, entry := range ports {
			switch v := entry.(type) {
			case string:
				ports[i] = OffsetComposePort(v, offset)
			case int:
				ports[i] = OffsetInt(v, offset)
			case float64:
				ports[i] = float64(OffsetInt(int(v), offset))
			case map[string]any:
				// Long syntax: only "published" is host-facing.
				switch pub := v["published"].(type) {
				case int:
					v["published"] = OffsetInt(pub, offset)
				case float64:
					v["published"] = float64(OffsetInt(int(pub), offset))
				case string:
					if p, err := strconv.Atoi(pub); err == nil {
						v["published"] = strconv.Itoa(p + offset)
					}
				}
			}
		}
	}

	return result
}
