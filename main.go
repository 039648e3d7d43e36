/*
   MagLock Desktop
   Copyright (C) 2025 MagLock Project

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"MagLock/logger"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

//go:embed all:frontend
var assets embed.FS

func getAssets() fs.FS {
	sub, err := fs.Sub(assets, "frontend")
	if err != nil {
		panic(err)
	}
	return sub
}

// buildMenu creates the application menu. About lives under Help and is only
// forwarded to the UI; the modal itself is rendered there.
func buildMenu(app *App) *menu.Menu {
	appMenu := menu.NewMenu()
	helpMenu := appMenu.AddSubmenu("Help")
	helpMenu.AddText("About MagLock", nil, func(_ *menu.CallbackData) {
		app.emitAboutRequested()
	})
	return appMenu
}

func main() {
	// Logs go to the user's config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	logDir := filepath.Join(configDir, "MagLock", "logs")

	if err := logger.Init(logDir, logger.INFO); err != nil {
		// Fall back to stdout-only logging if file logging fails
		logger.Warn("Failed to initialize file logging: %v", err)
	}
	defer logger.Close()

	logger.Info("MagLock Desktop starting...")

	app := NewApp()

	err = wails.Run(&options.App{
		Title: "MagLock Desktop",
		Windows: &windows.Options{
			DisableWindowIcon: true,
		},
		Width:  1100,
		Height: 750,
		AssetServer: &assetserver.Options{
			Assets: getAssets(),
		},
		BackgroundColour: &options.RGBA{R: 20, G: 22, B: 28, A: 1},
		Menu:             buildMenu(app),
		OnStartup:        app.startup,
		OnDomReady:       app.domReady,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		logger.Error("Application failed to start: %v", err)
	}

	logger.Info("MagLock Desktop shutting down")
}
