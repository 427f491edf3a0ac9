package access

import (
	"sort"
	"strings"

	"crmpanel/models"
)

// CompaniesNavKey is the reserved machine key whose menu entry collapses,
// for tenant users, from the company list page into a direct link to their
// own company.
const CompaniesNavKey = "companies"

// TreeNode is one rendered menu entry with its sorted children.
type TreeNode struct {
	models.NavigationItem
	Children []*TreeNode `json:"children,omitempty"`
}

// BuildTree assembles flat navigation rows into a forest. Items whose
// parent is absent from the input set are promoted to roots, every level
// is sorted by sort_order, and the reserved "companies" entry is rewritten
// for non-admin tenants. Pure: stored rows are never modified.
func BuildTree(items []models.NavigationItem, actorIsSuperAdmin bool, actorCompanyToken string) []*TreeNode {
	nodes := make(map[uint]*TreeNode, len(items))
	for _, item := range items {
		nodes[item.ID] = &TreeNode{NavigationItem: item}
	}

	var roots []*TreeNode
	for _, item := range items {
		node := nodes[item.ID]
		if item.ParentID != nil {
			if parent, ok := nodes[*item.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortLevel(roots)

	if !actorIsSuperAdmin && actorCompanyToken != "" {
		rewriteCompanies(roots, actorCompanyToken)
	}

	return roots
}

func sortLevel(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].SortOrder < nodes[j].SortOrder
	})
	for _, node := range nodes {
		sortLevel(node.Children)
	}
}

func rewriteCompanies(nodes []*TreeNode, companyToken string) {
	for _, node := range nodes {
		if node.Key == CompaniesNavKey {
			node.Label = singularize(node.Label)
			node.Path = "/companies/" + companyToken
		}
		rewriteCompanies(node.Children, companyToken)
	}
}

func singularize(label string) string {
	if strings.HasSuffix(label, "ies") {
		return strings.TrimSuffix(label, "ies") + "y"
	}
	return strings.TrimSuffix(label, "s")
}
