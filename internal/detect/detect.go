// Package detect identifies which CMS platform a target codebase is built
// on by scoring filesystem and content markers. Detection is evidence-based:
// the result carries every marker that fired so reports can show why a
// platform was chosen.
package detect

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Platform enumerates the supported CMS platforms.
type Platform string

const (
	PlatformSitecore   Platform = "sitecore"
	PlatformUmbraco    Platform = "umbraco"
	PlatformOptimizely Platform = "optimizely"
	PlatformUnknown    Platform = "unknown"
)

// Evidence records one marker hit.
type Evidence struct {
	Platform Platform
	Path     string
	Marker   string
	Weight   int
}

// Result is the ranked detection outcome.
type Result struct {
	Platform   Platform
	Confidence float64
	Evidence   []Evidence
}

// marker pairs a content substring with the file shapes it may appear in.
type marker struct {
	platform  Platform
	substring string
	weight    int
	exts      []string
}

var markers = []marker{
	{PlatformSitecore, "Sitecore.Kernel", 10, []string{".csproj", ".config"}},
	{PlatformSitecore, "Sitecore.Mvc", 6, []string{".csproj", ".config"}},
	{PlatformSitecore, "<sitecore", 8, []string{".config"}},
	{PlatformSitecore, "xmlns:patch=\"http://www.sitecore.net/xmlconfig/\"", 8, []string{".config"}},
	{PlatformUmbraco, "Umbraco.Cms", 10, []string{".csproj", ".config", ".json"}},
	{PlatformUmbraco, "\"Umbraco\"", 6, []string{".json"}},
	{PlatformUmbraco, "umbracoDbDSN", 6, []string{".config", ".json"}},
	{PlatformOptimizely, "EPiServer.CMS", 10, []string{".csproj", ".config"}},
	{PlatformOptimizely, "EPiServer.Framework", 8, []string{".csproj", ".config"}},
	{PlatformOptimizely, "@optimizely/", 6, []string{".json"}},
	{PlatformOptimizely, "episerver", 4, []string{".json", ".config"}},
}

// directory names whose presence alone counts as evidence.
var dirMarkers = map[string]Evidence{
	"App_Config":  {Platform: PlatformSitecore, Marker: "App_Config directory", Weight: 6},
	"sitecore":    {Platform: PlatformSitecore, Marker: "sitecore directory", Weight: 2},
	"umbraco":     {Platform: PlatformUmbraco, Marker: "umbraco directory", Weight: 4},
	"App_Plugins": {Platform: PlatformUmbraco, Marker: "App_Plugins directory", Weight: 4},
	"modulesbin":  {Platform: PlatformOptimizely, Marker: "modulesbin directory", Weight: 4},
}

// maxProbeSize caps how much of a candidate file is read for markers.
const maxProbeSize = 512 * 1024

// maxProbeFiles caps how many candidate files are inspected per run.
const maxProbeFiles = 400

// Detect walks the target tree and ranks platform evidence.
func Detect(fsys fs.FS) (Result, error) {
	var evidence []Evidence
	probed := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if skipDir(name) {
				return fs.SkipDir
			}
			if hit, ok := dirMarkers[name]; ok {
				hit.Path = p
				evidence = append(evidence, hit)
			}
			return nil
		}
		ext := strings.ToLower(path.Ext(name))
		if !probeExt(ext) || probed >= maxProbeFiles {
			return nil
		}
		probed++
		content, err := readProbe(fsys, p)
		if err != nil {
			return nil
		}
		for _, m := range markers {
			if !extIn(ext, m.exts) {
				continue
			}
			if strings.Contains(content, m.substring) {
				evidence = append(evidence, Evidence{
					Platform: m.platform,
					Path:     p,
					Marker:   m.substring,
					Weight:   m.weight,
				})
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("detect: walk target: %w", err)
	}
	return rank(evidence), nil
}

func rank(evidence []Evidence) Result {
	totals := map[Platform]int{}
	for _, e := range evidence {
		totals[e.Platform] += e.Weight
	}
	best := PlatformUnknown
	bestScore, sum := 0, 0
	for platform, score := range totals {
		sum += score
		if score > bestScore || (score == bestScore && platform < best) {
			best, bestScore = platform, score
		}
	}
	if bestScore == 0 {
		return Result{Platform: PlatformUnknown}
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].Weight > evidence[j].Weight
	})
	return Result{
		Platform:   best,
		Confidence: float64(bestScore) / float64(sum),
		Evidence:   evidence,
	}
}

func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "bin", "obj", "packages", ".vs":
		return true
	}
	return false
}

func probeExt(ext string) bool {
	switch ext {
	case ".csproj", ".config", ".json":
		return true
	}
	return false
}

func extIn(ext string, exts []string) bool {
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func readProbe(fsys fs.FS, p string) (string, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxProbeSize))
	if err != nil {
		return "", err
	}
	return string(content), nil
}
