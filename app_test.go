package main

import (
	"path/filepath"
	"testing"
)

func TestBackendExecutable(t *testing.T) {
	tests := []struct {
		name     string
		exeDir   string
		platform string
		want     string
	}{
		{
			name:   "windows gets exe suffix",
			exeDir: `C:\Program Files\MagLock`, platform: "windows",
			want: filepath.Join(`C:\Program Files\MagLock`, "maglock-backend.exe"),
		},
		{
			name:   "darwin bare name",
			exeDir: "/Applications/MagLock.app/Contents/MacOS", platform: "darwin",
			want: filepath.Join("/Applications/MagLock.app/Contents/MacOS", "maglock-backend"),
		},
		{
			name:   "linux bare name",
			exeDir: "/opt/maglock", platform: "linux",
			want: filepath.Join("/opt/maglock", "maglock-backend"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backendExecutable(tt.exeDir, tt.platform); got != tt.want {
				t.Errorf("backendExecutable() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmitAboutRequestedWithoutContext(t *testing.T) {
	// The menu can in principle fire before startup; forwarding must not panic.
	var a *App
	a.emitAboutRequested()

	NewApp().emitAboutRequested()
}
