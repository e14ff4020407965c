package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/model-collapse/apple-coco/coco"
	"github.com/model-collapse/apple-coco/convert"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func put(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
}

func cliFixture(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	put(t, fs, "/data/apples/labelmap.json", []byte(`{"healthy": 1, "scab": 2}`))
	put(t, fs, "/data/apples/healthy/color/images/h1.png", whitePNG(t, 32, 32))
	put(t, fs, "/data/apples/healthy/color/csv/h1.csv", []byte("#item,x,y,width,height,label\n1,4,4,20,20,healthy\n"))
	put(t, fs, "/data/apples/scab/color/images/s1.png", whitePNG(t, 32, 32))
	return fs
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	a := newApp(fs)
	a.logger = zap.NewNop()

	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	fs := cliFixture(t)

	out, err := execute(t, fs, "convert", "--root", "/data", "--out", "/out", "--splits", "train", "--combined")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated: /out/healthy/apples_instances_train.json (1 images, 1 annotations)")
	assert.Contains(t, out, "Generated: /out/scab/apples_instances_train.json (1 images, 0 annotations)")
	assert.Contains(t, out, "Generated: /out/apples_instances_train.json (2 images, 1 annotations)")
	assert.Contains(t, out, "Generated: /out/combined_instances_train.json (2 images, 1 annotations)")
	assert.NotContains(t, out, "Skipped")

	f, err := coco.LoadAnnotationFile(fs, "/out/apples_instances_train.json")
	require.NoError(t, err)
	require.NoError(t, coco.Validate(f))
	require.Len(t, f.Images, 2)
	assert.EqualValues(t, 1, f.Images[0].ID)
	assert.EqualValues(t, 2, f.Images[1].ID)
	assert.Equal(t, "apples/scab/color/images/s1.png", f.Images[1].FileName)

	exists, err := afero.Exists(fs, "/out/healthy/apples_instances_val.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConvertCommandReportsSkippedRows(t *testing.T) {
	fs := cliFixture(t)
	put(t, fs, "/data/apples/scab/color/csv/s1.csv", []byte("#item,x,y,width,height,label\n1,1,1,2,2,rust\n2,x,1,2,2,scab\n"))

	out, err := execute(t, fs, "convert", "--root", "/data", "--out", "/out", "--splits", "val")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipped 2 inputs:")
	assert.Contains(t, out, "scab/val: 2")
}

func TestConvertCommandFatal(t *testing.T) {
	fs := cliFixture(t)

	_, err := execute(t, fs, "convert", "--out", "/out")
	assert.ErrorIs(t, err, convert.ErrInvalidOptions)

	_, err = execute(t, fs, "convert", "--root", "/data", "--out", "/out", "--variant", "sepia")
	assert.ErrorIs(t, err, convert.ErrInvalidOptions)

	require.NoError(t, fs.Remove("/data/apples/labelmap.json"))
	_, err = execute(t, fs, "convert", "--root", "/data", "--out", "/out")
	assert.Error(t, err)

	exists, err := afero.DirExists(fs, "/out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConvertCommandConfigFile(t *testing.T) {
	fs := cliFixture(t)
	put(t, fs, "/etc/cococonv.yaml", []byte(`
root: /data
out: /annotations
combined: true
splits: [test]
info:
  prefix: Apple leaves
`))

	_, err := execute(t, fs, "convert", "--config", "/etc/cococonv.yaml")
	require.NoError(t, err)

	f, err := coco.LoadAnnotationFile(fs, "/annotations/combined_instances_test.json")
	require.NoError(t, err)
	assert.Equal(t, "Apple leaves apples combined color test split", f.Info.Description)
}

func TestInspectCommand(t *testing.T) {
	fs := cliFixture(t)
	_, err := execute(t, fs, "convert", "--root", "/data", "--out", "/out", "--splits", "train", "--combined")
	require.NoError(t, err)

	out, err := execute(t, fs, "inspect", "/out/combined_instances_train.json")
	require.NoError(t, err)
	assert.Contains(t, out, "2 images (1 without annotations), 1 annotations, 2 categories")
	assert.Contains(t, out, "healthy")

	bad, err := coco.LoadAnnotationFile(fs, "/out/combined_instances_train.json")
	require.NoError(t, err)
	bad.Annotations[0].ImageID = 42
	require.NoError(t, coco.WriteAnnotationFile(fs, "/out/bad.json", bad))

	out, err = execute(t, fs, "inspect", "/out/bad.json", "/out/missing.json")
	assert.Error(t, err)
	assert.Contains(t, out, "INVALID: 1 problems")
}

func TestPreviewCommand(t *testing.T) {
	fs := cliFixture(t)
	_, err := execute(t, fs, "convert", "--root", "/data", "--out", "/out", "--splits", "train")
	require.NoError(t, err)

	_, err = execute(t, fs, "preview", "--root", "/data", "--doc", "/out/healthy/apples_instances_train.json",
		"--image-id", "1", "--out", "/preview/h1.png")
	require.NoError(t, err)

	f, err := fs.Open("/preview/h1.png")
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Bounds())
	assert.NotEqual(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(4, 12)))
	assert.Equal(t, color.RGBAModel.Convert(color.White), color.RGBAModel.Convert(img.At(14, 14)))

	_, err = execute(t, fs, "preview", "--root", "/data", "--doc", "/out/healthy/apples_instances_train.json",
		"--image-id", "7", "--out", "/preview/none.png")
	assert.Error(t, err)

	_, err = execute(t, fs, "preview", "--root", "/data")
	assert.Error(t, err)
}

func TestPreviewRootFromConfigFile(t *testing.T) {
	fs := cliFixture(t)
	put(t, fs, "/etc/cococonv.yaml", []byte("root: /data\nout: /out\nsplits: [train]\n"))

	_, err := execute(t, fs, "convert", "--config", "/etc/cococonv.yaml")
	require.NoError(t, err)

	_, err = execute(t, fs, "--config", "/etc/cococonv.yaml", "preview",
		"--doc", "/out/apples_instances_train.json", "--image-id", "1", "--out", "/preview/h1.png")
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/preview/h1.png")
	require.NoError(t, err)
	assert.True(t, exists)

	// without a config file the relative root cannot resolve the image
	_, err = execute(t, fs, "preview",
		"--doc", "/out/apples_instances_train.json", "--image-id", "1", "--out", "/preview/h2.png")
	assert.Error(t, err)
}
