package enrich

import (
	"fmt"
	"strings"

	"ossensor/internal/model"
)

// maxInstructionRefs bounds how many allowed refs the instruction enumerates.
const maxInstructionRefs = 80

// stringStableIDLen matches the report generators: a binary string is cited
// by its first 64 bytes.
const stringStableIDLen = 64

// refKey identifies a citation target. Two refs are the same target when the
// type and stable id match; artifact id does not participate.
type refKey struct {
	refType  string
	stableID string
}

// AllowList is the closed set of citation targets derivable from one bundle.
// Anything the provider cites outside this set is dropped by the gate.
type AllowList struct {
	refs []model.EvidenceRef
	keys map[refKey]bool
}

// NewAllowList derives the citable refs from a bundle, deduplicated in first-
// occurrence order: hunks, binary strings, log templates, then the function
// names of the binary diff pairs.
func NewAllowList(bundle *model.EvidenceBundle) *AllowList {
	al := &AllowList{keys: make(map[refKey]bool)}
	for _, h := range bundle.DiffHunks {
		al.add(model.RefDiffHunk, h.HunkID)
	}
	for _, b := range append(append([]model.BinaryFeature{}, bundle.BinaryFeaturesFrom...), bundle.BinaryFeaturesTo...) {
		if b.Value == "" {
			continue
		}
		sid := b.Value
		if len(sid) > stringStableIDLen {
			sid = sid[:stringStableIDLen]
		}
		al.add(model.RefString, sid)
		if b.FeatureType == model.BinarySymbols {
			al.add(model.RefSymbol, b.Value)
		}
	}
	for _, t := range bundle.LogTemplates {
		al.add(model.RefLogTemplate, t.TemplateID)
	}
	for _, p := range bundle.BinaryDiffPairs {
		for _, name := range []string{p.FromFunction, p.ToFunction} {
			if name != "" {
				al.add(model.RefBinaryFunction, name)
			}
		}
	}
	return al
}

func (al *AllowList) add(refType, stableID string) {
	key := refKey{refType, stableID}
	if al.keys[key] {
		return
	}
	al.keys[key] = true
	al.refs = append(al.refs, model.EvidenceRef{RefType: refType, StableID: stableID})
}

// Contains reports whether the ref is a legal citation target.
func (al *AllowList) Contains(ref model.EvidenceRef) bool {
	return al.keys[refKey{ref.RefType, ref.StableID}]
}

// Len returns the number of distinct citation targets.
func (al *AllowList) Len() int {
	return len(al.refs)
}

// Instruction renders the allow-list for the provider's system prompt. At
// most maxInstructionRefs entries are enumerated; the gate still validates
// against the full list.
func (al *AllowList) Instruction() string {
	if len(al.refs) == 0 {
		return "There are no evidence refs to cite; you may still improve the narrative but do not invent IDs."
	}
	var sb strings.Builder
	sb.WriteString("When citing evidence, use ONLY these refs (ref_type and stable_id):")
	refs := al.refs
	if len(refs) > maxInstructionRefs {
		refs = refs[:maxInstructionRefs]
	}
	for _, r := range refs {
		fmt.Fprintf(&sb, "\n  - ref_type=%q, stable_id=%q", r.RefType, r.StableID)
	}
	return sb.String()
}

// Filter keeps only the refs present in the allow-list, preserving order.
func (al *AllowList) Filter(refs []model.EvidenceRef) []model.EvidenceRef {
	var out []model.EvidenceRef
	for _, r := range refs {
		if al.Contains(r) {
			out = append(out, model.EvidenceRef{RefType: r.RefType, ArtifactID: r.ArtifactID, StableID: r.StableID})
		}
	}
	return out
}
