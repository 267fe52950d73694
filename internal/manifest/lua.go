package manifest

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

const luaGlobalDrivers = "drivers"

// sandboxLuaVM removes everything that lets a manifest script reach outside
// the VM: os, io, module loading and debug. string, table and math stay.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range []string{
		"os", "io", "debug",
		"require", "dofile", "loadfile", "load", "loadstring",
	} {
		L.SetGlobal(name, lua.LNil)
	}
}

func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}

// decodeLua runs the script and reads the global drivers table.
// Nil holes left by platform.when(...) are skipped, so a manifest can list
// per-OS entries inline.
func (l *Loader) decodeLua(ctx context.Context, code []byte) ([]wireEntry, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if l.detector != nil {
		info, err := l.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(string(code)); err != nil {
		return nil, &ParseError{Message: "Lua syntax error", Detail: err.Error()}
	}

	global := L.GetGlobal(luaGlobalDrivers)
	table, ok := global.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'drivers' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}

	var entries []wireEntry
	var extractErr error
	// Walk the array part in order; ForEach would not guarantee it.
	n := table.MaxN()
	for i := 1; i <= n; i++ {
		value := table.RawGetInt(i)
		if value.Type() == lua.LTNil {
			continue
		}
		entryTable, ok := value.(*lua.LTable)
		if !ok {
			extractErr = &ParseError{
				Message: "invalid driver entry",
				Detail:  fmt.Sprintf("drivers[%d]: expected table, got %s", i, value.Type()),
			}
			break
		}
		entries = append(entries, extractEntry(entryTable))
	}
	if extractErr != nil {
		return nil, extractErr
	}

	return entries, nil
}

func extractEntry(t *lua.LTable) wireEntry {
	str := func(key string) string {
		switch v := t.RawGetString(key); v.Type() {
		case lua.LTString:
			return v.String()
		case lua.LTNumber:
			return lua.LVAsString(v)
		default:
			return ""
		}
	}

	w := wireEntry{
		Name:         str("name"),
		Version:      str("version"),
		DeviceID:     str("deviceId"),
		URL:          str("url"),
		FileName:     str("fileName"),
		SHA256:       str("sha256"),
		ExpectedHash: str("expectedHash"),
		Type:         str("type"),
		InstallType:  str("installType"),
		OS:           str("os"),
		SilentArgs:   str("silentArgs"),
		SignatureURL: str("signatureUrl"),
	}
	if v := t.RawGetString("size"); v.Type() == lua.LTNumber {
		w.Size = int64(lua.LVAsNumber(v))
	}
	return w
}
