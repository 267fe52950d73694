package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable sets the global "platform" to a read-only view of info.
// Call it before running manifest code.
//
// Besides the raw facts, the table carries package_format ("deb", "rpm" or
// nil) so a manifest can pick the right artifact with platform.when.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	t := L.NewTable()

	fields := map[string]string{
		"os":       info.OS,
		"arch":     info.Arch,
		"arch_raw": info.ArchRaw,
	}
	for k, v := range fields {
		L.SetField(t, k, lua.LString(v))
	}

	flags := map[string]bool{
		"is_linux":         info.IsLinux(),
		"is_windows":       info.IsWindows(),
		"is_amd64":         info.Arch == "amd64",
		"is_arm64":         info.Arch == "arm64",
		"is_debian_family": info.IsDebianFamily(),
		"is_rhel_family":   info.IsRHELFamily(),
		"is_fedora_family": info.IsFedoraFamily(),
		"is_suse_family":   info.IsSUSEFamily(),
	}
	for k, v := range flags {
		L.SetField(t, k, lua.LBool(v))
	}

	L.SetField(t, "distro", lua.LNil)
	L.SetField(t, "linux_family", lua.LNil)
	if d := info.GetDistro(); d != nil {
		dt := L.NewTable()
		L.SetField(dt, "id", lua.LString(d.ID))
		L.SetField(dt, "family", lua.LString(d.Family))
		L.SetField(dt, "version", lua.LString(d.Version))
		L.SetField(t, "distro", dt)
		if d.Family != "" {
			L.SetField(t, "linux_family", lua.LString(d.Family))
		}
	}

	if f := packageFormat(info); f != "" {
		L.SetField(t, "package_format", lua.LString(f))
	} else {
		L.SetField(t, "package_format", lua.LNil)
	}

	// when(cond, value) yields value or nil.
	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal("platform", readOnly(L, t))
	return nil
}

// packageFormat is the native Linux package type for the distro family.
func packageFormat(info *Info) string {
	switch {
	case !info.IsLinux():
		return ""
	case info.IsDebianFamily():
		return "deb"
	case info.IsRHELFamily(), info.IsFedoraFamily(), info.IsSUSEFamily():
		return "rpm"
	}
	return ""
}

// readOnly wraps table in an empty proxy whose metatable forwards reads and
// rejects writes.
func readOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only and cannot be modified")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
