package web

import "embed"

// StaticFS embeds the single-page client served at the site root.
//
//go:embed static/*
var StaticFS embed.FS
