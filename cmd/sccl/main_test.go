package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sccl/internal/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMatrix(t *testing.T) {
	path := writeFile(t, "data.csv", "1.5,2\n3,4.25\n")
	data, err := loadMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1.5, 2}, {3, 4.25}}, data)
}

func TestLoadMatrixRejectsNonNumeric(t *testing.T) {
	path := writeFile(t, "data.csv", "1,2\nfoo,4\n")
	_, err := loadMatrix(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadConstraints(t *testing.T) {
	path := writeFile(t, "pairs.csv", "0,1\n2,3\n")
	pairs, err := loadConstraints(path, 4)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 1}, {2, 3}}, pairs)
}

func TestLoadConstraintsRejectsOutOfRange(t *testing.T) {
	path := writeFile(t, "pairs.csv", "0,9\n")
	_, err := loadConstraints(path, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestLoadConstraintsRequiresPath(t *testing.T) {
	_, err := loadConstraints("", 4)
	require.Error(t, err)
}

func TestLoadTexts(t *testing.T) {
	path := writeFile(t, "texts.csv",
		"text,augmentation_1,augmentation_2,label\n"+
			"hello world,hello there,hi world,0\n"+
			"good morning,fine morning,nice morning,1\n")
	texts, aug1, aug2, labels, err := loadTexts(path, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world", "good morning"}, texts)
	assert.Equal(t, []string{"hello there", "fine morning"}, aug1)
	assert.Equal(t, []string{"hi world", "nice morning"}, aug2)
	assert.Equal(t, []int{0, 1}, labels)
}

func TestLoadTextsWithoutAugmentations(t *testing.T) {
	path := writeFile(t, "texts.csv", "text\nhello\nworld\n")
	texts, aug1, aug2, labels, err := loadTexts(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, texts)
	assert.Empty(t, aug1)
	assert.Empty(t, aug2)
	assert.Empty(t, labels)
}

func TestLoadTextsExplicitNeedsAugmentations(t *testing.T) {
	path := writeFile(t, "texts.csv", "text\nhello\n")
	_, _, _, _, err := loadTexts(path, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "augmentation")
}

func TestLoadEntities(t *testing.T) {
	path := writeFile(t, "entities.csv",
		"entity,text,label\n"+
			"3,the capital of france,0\n"+
			"0,a large river delta,1\n")
	ids, texts, labels, err := loadEntities(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0}, ids)
	assert.Equal(t, []string{"the capital of france", "a large river delta"}, texts)
	assert.Equal(t, []int{0, 1}, labels)
}

func TestLoadEntitiesWithoutLabels(t *testing.T) {
	path := writeFile(t, "entities.csv", "entity,text\n1,hello\n")
	ids, texts, labels, err := loadEntities(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
	assert.Equal(t, []string{"hello"}, texts)
	assert.Empty(t, labels)
}

func TestLoadEntitiesRequiresColumns(t *testing.T) {
	path := writeFile(t, "entities.csv", "text\nhello\n")
	_, _, _, err := loadEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity column")

	path = writeFile(t, "entities.csv", "entity\n0\n")
	_, _, _, err = loadEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text column")
}

func TestLoadEntitiesRejectsBadID(t *testing.T) {
	path := writeFile(t, "entities.csv", "entity,text\nseven,hello\n")
	_, _, _, err := loadEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestFuseRows(t *testing.T) {
	kge := [][]float32{{1, 2}, {3, 4}}
	textEmb := [][]float32{{0.5, 0.6, 0.7}, {0.1, 0.2, 0.3}}
	fused := fuseRows([]int{1, 0}, kge, textEmb)
	assert.Equal(t, [][]float32{
		{3, 4, 0.5, 0.6, 0.7},
		{1, 2, 0.1, 0.2, 0.3},
	}, fused)
}

func TestLoadLabels(t *testing.T) {
	path := writeFile(t, "labels.txt", "0\n0\n1\n2\n")
	labels, err := loadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 2}, labels)

	labels, err = loadLabels("")
	require.NoError(t, err)
	assert.Nil(t, labels)
}

func TestInitialCenters(t *testing.T) {
	data := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{9, 9}, {9.1, 9}, {9, 9.1},
	}
	cfg := config.Default()
	cfg.NumClusters = 2

	centers, err := initialCenters(data, cfg)
	require.NoError(t, err)
	require.Len(t, centers, 2)

	cfg.NumClusters = 10
	_, err = initialCenters(data, cfg)
	require.Error(t, err, "cannot seed more clusters than points")
}

func TestWriteAssignments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assignments.csv")
	require.NoError(t, writeAssignments(path, []int{1, 0, 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,1\n1,0\n2,1\n", string(data))
}
