// Package installer performs silent driver installs.
//
// # Dispatch
//
// Dispatch is table-driven on (install type, target OS). Each cell of the
// table is a Strategy; the dispatcher never branches on type itself. Pairs
// with no strategy (msi on linux, deb on windows) are reported as an
// unsupported Outcome, never as an error.
//
//	exe    windows, linux  silent-argument cascade, then one interactive attempt
//	msi    windows         msiexec /i <file> /qn /norestart
//	zip    windows, linux  extract, install the first inner exe/msi
//	deb    linux           dpkg -i, then apt-get install -y
//	rpm    linux           rpm -i, then dnf/yum/zypper by distro family
//	manual windows, linux  write a <fileName>.manual.txt instruction note
//
// # Exit Codes
//
// Windows installers succeed on 0, 3010 (reboot pending) and 1641 (reboot
// initiated). Package managers succeed only on 0. Every successful
// non-manual install requests a reboot.
//
// # Usage
//
//	d := installer.New(installer.Options{Runner: runner, Logger: logger})
//	out := d.Install(ctx, entry, "/var/drivers/chipset.exe", "windows")
//	if !out.Succeeded {
//	    return fmt.Errorf("install %s: %s", entry.Label(), out.Message)
//	}
package installer
