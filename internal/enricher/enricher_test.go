package enricher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cua-dev/cuad/internal/model"
)

func ptrBool(b bool) *bool { return &b }

func TestPrune_DropsEmptyLayoutGroups(t *testing.T) {
	root := &model.RawNode{
		Role: "group",
		Children: []*model.RawNode{
			{Role: "group"},
			{Role: "button", Title: "Save"},
		},
	}
	e := New()
	pruned := e.Prune(root)

	require.NotNil(t, pruned)
	assert.Len(t, pruned.Children, 1, "the empty nested group must be dropped")
	assert.Equal(t, "button", pruned.Children[0].Role)
}

func TestPrune_KeepsStaticTextWithContent(t *testing.T) {
	root := &model.RawNode{
		Role: "group",
		Children: []*model.RawNode{
			{Role: "statictext", Title: "Hello"},
			{Role: "statictext", Title: "  "},
		},
	}
	pruned := New().Prune(root)
	require.NotNil(t, pruned)
	assert.Len(t, pruned.Children, 1, "blank static text must be dropped, non-blank kept")
}

func TestPrune_BreaksCycles(t *testing.T) {
	a := &model.RawNode{Role: "group"}
	b := &model.RawNode{Role: "button", Title: "Loop"}
	a.Children = []*model.RawNode{b}
	b.Children = []*model.RawNode{a} // cycle

	assert.NotPanics(t, func() {
		New().Prune(a)
	})
}

func TestGroup_AssignsNearestSectionAncestor(t *testing.T) {
	root := &model.RawNode{
		Role: "window",
		Children: []*model.RawNode{
			{
				Role:  "toolbar",
				Title: "Main Toolbar",
				Children: []*model.RawNode{
					{Role: "button", Title: "Back"},
				},
			},
			{Role: "button", Title: "Root-level"},
		},
	}
	result := New().Group(root)

	var toolbarSection, contentSection *model.Section
	for i := range result.Sections {
		switch result.Sections[i].Role {
		case model.SectionToolbar:
			toolbarSection = &result.Sections[i]
		case model.SectionContent:
			contentSection = &result.Sections[i]
		}
	}
	require.NotNil(t, toolbarSection)
	require.NotNil(t, contentSection)
	assert.Equal(t, "Main Toolbar", toolbarSection.Label)
	require.Len(t, toolbarSection.Elements, 1)
	assert.Equal(t, "Back", toolbarSection.Elements[0].Label)
	require.Len(t, contentSection.Elements, 1)
	assert.Equal(t, "Root-level", contentSection.Elements[0].Label)
}

func TestGroup_NodesParallelElements(t *testing.T) {
	btn := &model.RawNode{Role: "button", Title: "Save", Enabled: ptrBool(true)}
	root := &model.RawNode{Role: "window", Children: []*model.RawNode{btn}}

	result := New().Group(root)
	require.Len(t, result.Sections, 1)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, len(result.Sections[0].Elements), len(result.Nodes[0]))
	assert.Same(t, btn, result.Nodes[0][0])
}

func TestGroup_EmptyTreeYieldsNoSections(t *testing.T) {
	result := New().Group(&model.RawNode{Role: "window"})
	assert.Empty(t, result.Sections)
}
