package detect

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedFS yields at most one byte per Read call, like a network or
// archive filesystem may.
type chunkedFS struct {
	fstest.MapFS
}

func (c chunkedFS) Open(name string) (fs.File, error) {
	f, err := c.MapFS.Open(name)
	if err != nil {
		return nil, err
	}
	return chunkedFile{f}, nil
}

type chunkedFile struct {
	fs.File
}

func (c chunkedFile) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return c.File.Read(p)
}

func TestDetectSitecore(t *testing.T) {
	fsys := fstest.MapFS{
		"src/Foundation/Foundation.csproj": &fstest.MapFile{
			Data: []byte(`<PackageReference Include="Sitecore.Kernel" Version="10.3.0" />`),
		},
		"src/App_Config/Include/Foundation.config": &fstest.MapFile{
			Data: []byte(`<configuration xmlns:patch="http://www.sitecore.net/xmlconfig/"><sitecore/></configuration>`),
		},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformSitecore, result.Platform)
	assert.Greater(t, result.Confidence, 0.9)
	assert.NotEmpty(t, result.Evidence)
}

func TestDetectUmbraco(t *testing.T) {
	fsys := fstest.MapFS{
		"MySite.csproj": &fstest.MapFile{
			Data: []byte(`<PackageReference Include="Umbraco.Cms" Version="13.0.0" />`),
		},
		"appsettings.json": &fstest.MapFile{
			Data: []byte(`{"Umbraco": {"CMS": {}}}`),
		},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformUmbraco, result.Platform)
}

func TestDetectOptimizely(t *testing.T) {
	fsys := fstest.MapFS{
		"Site.csproj": &fstest.MapFile{
			Data: []byte(`<PackageReference Include="EPiServer.CMS" Version="12.0.0" />`),
		},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformOptimizely, result.Platform)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestDetectUnknown(t *testing.T) {
	fsys := fstest.MapFS{
		"main.go": &fstest.MapFile{Data: []byte("package main")},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformUnknown, result.Platform)
	assert.Zero(t, result.Confidence)
}

func TestDetectSkipsVendorDirs(t *testing.T) {
	fsys := fstest.MapFS{
		"node_modules/some/package.json": &fstest.MapFile{
			Data: []byte(`{"dependencies": {"@optimizely/optimizely-sdk": "5.0.0"}}`),
		},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformUnknown, result.Platform)
}

func TestDetectMixedSignalsPicksStrongest(t *testing.T) {
	fsys := fstest.MapFS{
		"a.csproj": &fstest.MapFile{
			Data: []byte(`Sitecore.Kernel Sitecore.Mvc`),
		},
		"package.json": &fstest.MapFile{
			Data: []byte(`{"dependencies": {"@optimizely/js-sdk": "1.0.0"}}`),
		},
	}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformSitecore, result.Platform)
	assert.Less(t, result.Confidence, 1.0)
}

func TestDetectShortReads(t *testing.T) {
	fsys := chunkedFS{fstest.MapFS{
		"Site.csproj": &fstest.MapFile{
			Data: []byte(strings.Repeat(" ", 512) + `<PackageReference Include="Sitecore.Kernel" />`),
		},
	}}
	result, err := Detect(fsys)
	require.NoError(t, err)
	assert.Equal(t, PlatformSitecore, result.Platform)
}
