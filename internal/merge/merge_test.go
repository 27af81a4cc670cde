package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonDoc parses a JSON literal into the generic document shape. Tests use
// JSON literals because that is exactly how real documents arrive.
func jsonDoc(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	err := json.Unmarshal([]byte(raw), &doc)
	require.NoError(t, err, "test fixture should be valid JSON")
	return doc
}

// TestMerge_ObjectsRecurse verifies per-key recursion for nested objects.
func TestMerge_ObjectsRecurse(t *testing.T) {
	target := jsonDoc(t, `{
		"customizations": {
			"vscode": {
				"settings": {"editor.formatOnSave": true}
			}
		}
	}`)
	source := jsonDoc(t, `{
		"customizations": {
			"vscode": {
				"settings": {"python.linting.enabled": true}
			}
		}
	}`)

	result := Merge(target, source)

	settings := result["customizations"].(map[string]any)["vscode"].(map[string]any)["settings"].(map[string]any)
	assert.Equal(t, true, settings["editor.formatOnSave"], "target-only keys survive")
	assert.Equal(t, true, settings["python.linting.enabled"], "source keys are merged in")
}

// TestMerge_ArrayUnion verifies the union-dedup rule: target elements
// first, unseen source elements appended, order preserved.
func TestMerge_ArrayUnion(t *testing.T) {
	target := jsonDoc(t, `{"forwardPorts": [3000, 5432]}`)
	source := jsonDoc(t, `{"forwardPorts": [5432, 6379]}`)

	result := Merge(target, source)

	assert.Equal(t, []any{float64(3000), float64(5432), float64(6379)}, result["forwardPorts"],
		"duplicates drop, first-seen order wins")
}

// TestMerge_ArrayUnion_StructuralDedup verifies that logically equal
// object elements dedup even when they are distinct values.
func TestMerge_ArrayUnion_StructuralDedup(t *testing.T) {
	target := jsonDoc(t, `{"mounts": [{"source": "pgdata", "target": "/var/lib/postgresql/data"}]}`)
	source := jsonDoc(t, `{"mounts": [
		{"source": "pgdata", "target": "/var/lib/postgresql/data"},
		{"source": "redisdata", "target": "/data"}
	]}`)

	result := Merge(target, source)

	mounts := result["mounts"].([]any)
	assert.Len(t, mounts, 2, "structurally equal mounts should dedup")
}

// TestMerge_EmptySourceArrayNeverClears pins the rule that an empty array
// in a later overlay cannot wipe out what earlier overlays accumulated.
func TestMerge_EmptySourceArrayNeverClears(t *testing.T) {
	target := jsonDoc(t, `{"runArgs": ["--init", "--privileged"]}`)
	source := jsonDoc(t, `{"runArgs": []}`)

	result := Merge(target, source)

	assert.Equal(t, []any{"--init", "--privileged"}, result["runArgs"])
}

// TestMerge_ScalarReplacement verifies rule 4: scalars and type
// mismatches replace, and null is an explicit overwrite.
func TestMerge_ScalarReplacement(t *testing.T) {
	t.Run("scalar replaces scalar", func(t *testing.T) {
		result := Merge(jsonDoc(t, `{"name": "base"}`), jsonDoc(t, `{"name": "python"}`))
		assert.Equal(t, "python", result["name"])
	})

	t.Run("type mismatch replaces", func(t *testing.T) {
		result := Merge(jsonDoc(t, `{"appPort": 3000}`), jsonDoc(t, `{"appPort": ["3000:3000"]}`))
		assert.Equal(t, []any{"3000:3000"}, result["appPort"])
	})

	t.Run("null overwrites", func(t *testing.T) {
		result := Merge(jsonDoc(t, `{"overrideCommand": true}`), jsonDoc(t, `{"overrideCommand": null}`))
		v, exists := result["overrideCommand"]
		require.True(t, exists, "the key must remain present")
		assert.Nil(t, v, "null is an explicit overwrite, not a no-op")
	})

	t.Run("absent key untouched", func(t *testing.T) {
		result := Merge(jsonDoc(t, `{"image": "debian:12", "name": "base"}`), jsonDoc(t, `{"name": "py"}`))
		assert.Equal(t, "debian:12", result["image"])
	})
}

// TestMerge_PathRule verifies the PATH merge rule: both placeholders
// collapse to a single trailing one and segments union target-first.
func TestMerge_PathRule(t *testing.T) {
	target := jsonDoc(t, `{"remoteEnv": {"PATH": "/a:${containerEnv:PATH}"}}`)
	source := jsonDoc(t, `{"remoteEnv": {"PATH": "/b:${containerEnv:PATH}"}}`)

	result := Merge(target, source)

	env := result["remoteEnv"].(map[string]any)
	assert.Equal(t, "/a:/b:${containerEnv:PATH}", env["PATH"])
}

// TestMerge_PathRule_DedupSegments verifies segment dedup and placeholder
// uniqueness when both sides share segments.
func TestMerge_PathRule_DedupSegments(t *testing.T) {
	target := jsonDoc(t, `{"remoteEnv": {"PATH": "/usr/local/go/bin:/opt/tools:${containerEnv:PATH}"}}`)
	source := jsonDoc(t, `{"remoteEnv": {"PATH": "/opt/tools:/home/dev/.cargo/bin:${containerEnv:PATH}"}}`)

	result := Merge(target, source)

	env := result["remoteEnv"].(map[string]any)
	assert.Equal(t, "/usr/local/go/bin:/opt/tools:/home/dev/.cargo/bin:${containerEnv:PATH}", env["PATH"])
}

// TestMerge_RemoteEnv_OtherKeysReplace verifies that non-PATH remoteEnv
// subkeys follow plain replacement, not segment merging.
func TestMerge_RemoteEnv_OtherKeysReplace(t *testing.T) {
	target := jsonDoc(t, `{"remoteEnv": {"DATABASE_URL": "postgres://old", "KEEP": "yes"}}`)
	source := jsonDoc(t, `{"remoteEnv": {"DATABASE_URL": "postgres://new"}}`)

	result := Merge(target, source)

	env := result["remoteEnv"].(map[string]any)
	assert.Equal(t, "postgres://new", env["DATABASE_URL"])
	assert.Equal(t, "yes", env["KEEP"])
}

// TestMerge_PackageListUnion verifies token union for the space-separated
// package-list fields.
func TestMerge_PackageListUnion(t *testing.T) {
	target := jsonDoc(t, `{"features": {"apt": {"packages": "curl git jq"}}}`)
	source := jsonDoc(t, `{"features": {"apt": {"packages": "git htop"}}}`)

	result := Merge(target, source)

	apt := result["features"].(map[string]any)["apt"].(map[string]any)
	assert.Equal(t, "curl git jq htop", apt["packages"])
}

// TestMerge_Idempotent: merge(X, X) == X for any document X.
func TestMerge_Idempotent(t *testing.T) {
	doc := jsonDoc(t, `{
		"name": "stack",
		"forwardPorts": [3000, 5432],
		"remoteEnv": {"PATH": "/a:${containerEnv:PATH}", "FOO": "bar"},
		"features": {"apt": {"packages": "curl git"}},
		"customizations": {"vscode": {"extensions": ["ms-python.python"]}}
	}`)

	result := Merge(doc, doc)

	assert.Equal(t, doc, result)
}

// TestMerge_LeftAssociative: folding A,B,C sequentially equals a single
// left-to-right reduce, byte for byte.
func TestMerge_LeftAssociative(t *testing.T) {
	base := jsonDoc(t, `{"name": "base", "forwardPorts": [8080]}`)
	a := jsonDoc(t, `{"forwardPorts": [3000], "remoteEnv": {"PATH": "/a:${containerEnv:PATH}"}}`)
	b := jsonDoc(t, `{"forwardPorts": [5432], "remoteEnv": {"PATH": "/b:${containerEnv:PATH}"}}`)
	c := jsonDoc(t, `{"forwardPorts": [6379], "name": "final"}`)

	sequential := Merge(Merge(Merge(base, a), b), c)
	folded := Fold(base, a, b, c)

	seqBytes, err := json.Marshal(sequential)
	require.NoError(t, err)
	foldBytes, err := json.Marshal(folded)
	require.NoError(t, err)
	assert.Equal(t, string(seqBytes), string(foldBytes))
}

// TestMerge_DoesNotMutateInputs pins the purity contract: mutating the
// result must not reach back into either input.
func TestMerge_DoesNotMutateInputs(t *testing.T) {
	target := jsonDoc(t, `{"nested": {"list": [1, 2]}, "name": "t"}`)
	source := jsonDoc(t, `{"nested": {"list": [3]}, "extra": {"k": "v"}}`)

	targetBefore, _ := json.Marshal(target)
	sourceBefore, _ := json.Marshal(source)

	result := Merge(target, source)

	// Mutate the result aggressively.
	result["name"] = "mutated"
	result["nested"].(map[string]any)["list"].([]any)[0] = float64(99)
	result["extra"].(map[string]any)["k"] = "mutated"

	targetAfter, _ := json.Marshal(target)
	sourceAfter, _ := json.Marshal(source)
	assert.JSONEq(t, string(targetBefore), string(targetAfter), "target must be untouched")
	assert.JSONEq(t, string(sourceBefore), string(sourceAfter), "source must be untouched")
}

// TestClone verifies deep copying of nested documents.
func TestClone(t *testing.T) {
	doc := jsonDoc(t, `{"a": {"b": [1, {"c": "d"}]}}`)

	copied := CloneDoc(doc)
	copied["a"].(map[string]any)["b"].([]any)[1].(map[string]any)["c"] = "mutated"

	assert.Equal(t, "d", doc["a"].(map[string]any)["b"].([]any)[1].(map[string]any)["c"])
	assert.Nil(t, CloneDoc(nil))
}
