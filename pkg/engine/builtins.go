package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/mortise/pkg/assembly"
	"github.com/chazu/mortise/pkg/kernel"
	"github.com/chazu/mortise/pkg/pose"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms Mortise Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: point-in-plane -> point_in_plane
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when the hyphen sits between identifier characters (not a
		// minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolid wraps a kernel.Solid so it can be returned from `box` and
// `cylinder` and consumed by `part`.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(solid %s)", s.desc)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps an assembly node path so it can be passed between
// builtins.
type sexpNodeRef struct {
	path string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(noderef %q)", n.path)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps an r3.Vec.
type sexpVec3 struct {
	vec r3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value; treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_top) and plain strings ("top").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toFeatureID converts a keyword or string to a kernel.FeatureID.
func toFeatureID(s zygo.Sexp) (kernel.FeatureID, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return "", fmt.Errorf("expected feature keyword: %w", err)
	}
	fid := kernel.FeatureID(name)
	if !kernel.ValidFeatureIDs[fid] {
		return "", fmt.Errorf("invalid feature %q", name)
	}
	return fid, nil
}

// toKind converts a keyword or string to an assembly constraint kind.
func toKind(s zygo.Sexp) (assembly.Kind, error) {
	name, err := toKeywordString(s)
	if err != nil {
		return 0, fmt.Errorf("expected constraint kind keyword: %w", err)
	}
	return assembly.KindFromString(name)
}

// toSolid extracts a kernel.Solid from a sexpSolid.
func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v.solid, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts an r3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (r3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return r3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toPath extracts a node path from either a string or a node reference.
func toPath(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *zygo.SexpStr:
		if strings.HasPrefix(v.S, kwPrefix) {
			return "", fmt.Errorf("expected node path, got keyword :%s", v.S[len(kwPrefix):])
		}
		return v.S, nil
	case *sexpNodeRef:
		return v.path, nil
	}
	return "", fmt.Errorf("expected node path or reference, got %T (%s)", s, s.SexpString(nil))
}

// localPose builds a node's initial local pose from :at and :rotate
// keyword arguments. :at is a translation vector; :rotate holds Euler
// angles in degrees applied about the world X, Y then Z axes.
func localPose(pa kwArgs, form string) (pose.Pose, error) {
	p := pose.Identity()
	if v, ok := pa.kw["rotate"]; ok {
		e, err := toVec3(v)
		if err != nil {
			return p, fmt.Errorf("%s: rotate: %w", form, err)
		}
		p = pose.FromEuler(e.X, e.Y, e.Z)
	}
	if v, ok := pa.kw["at"]; ok {
		t, err := toVec3(v)
		if err != nil {
			return p, fmt.Errorf("%s: at: %w", form, err)
		}
		p = pose.Compose(pose.Translation(t), p)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all Mortise DSL builtins into a zygomys
// environment. The builtins operate on the provided Assembly, populating it
// during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation
// so that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, kern kernel.Kernel, a *assembly.Assembly) {

	// -----------------------------------------------------------------------
	// (box 100 50 25)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires exactly 3 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: z: %w", err)
		}
		return &sexpSolid{
			solid: kern.Box(x, y, z),
			desc:  fmt.Sprintf("box %.0fx%.0fx%.0f", x, y, z),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder 50 10)          ; height radius
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("cylinder requires exactly 2 arguments, got %d", len(args))
		}
		h, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		r, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		return &sexpSolid{
			solid: kern.Cylinder(h, r, 0),
			desc:  fmt.Sprintf("cylinder h=%.0f r=%.0f", h, r),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}
		return &sexpVec3{vec: r3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (part "leg" :shape (box 40 40 700)
	//             :parent "frame"
	//             :at (vec3 0 0 19)
	//             :rotate (vec3 0 0 90))
	// -----------------------------------------------------------------------
	env.AddFunction("part", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}

		shapeArg, ok := pa.kw["shape"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("part %q: missing :shape", partName)
		}
		solid, err := toSolid(shapeArg)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part %q: shape: %w", partName, err)
		}

		parent := ""
		if v, ok := pa.kw["parent"]; ok {
			parent, err = toPath(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("part %q: parent: %w", partName, err)
			}
		}

		initial, err := localPose(pa, fmt.Sprintf("part %q", partName))
		if err != nil {
			return zygo.SexpNull, err
		}

		n, err := a.Add(parent, partName, solid, initial)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part %q: %w", partName, err)
		}
		return &sexpNodeRef{path: n.Path()}, nil
	})

	// -----------------------------------------------------------------------
	// (group "frame" :parent "" :at (vec3 0 0 0))
	//
	// A group is a shapeless node used purely for hierarchy. Its features
	// cannot be referenced by constraints.
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("group requires a name argument")
		}
		groupName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group: name: %w", err)
		}

		parent := ""
		if v, ok := pa.kw["parent"]; ok {
			parent, err = toPath(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("group %q: parent: %w", groupName, err)
			}
		}

		initial, err := localPose(pa, fmt.Sprintf("group %q", groupName))
		if err != nil {
			return zygo.SexpNull, err
		}

		n, err := a.Add(parent, groupName, nil, initial)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group %q: %w", groupName, err)
		}
		return &sexpNodeRef{path: n.Path()}, nil
	})

	// -----------------------------------------------------------------------
	// (anchor "frame/leg" "foot" :bottom)
	//
	// Names a feature on a node so constraints can reference it as
	// "frame/leg@foot".
	// -----------------------------------------------------------------------
	env.AddFunction("anchor", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("anchor requires a path, a tag and a feature, got %d arguments", len(args))
		}
		path, err := toPath(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("anchor: path: %w", err)
		}
		tag, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("anchor: tag: %w", err)
		}
		fid, err := toFeatureID(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("anchor: feature: %w", err)
		}

		n, err := a.Resolve(path)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("anchor: %w", err)
		}
		if err := n.SetAnchor(tag, fid); err != nil {
			return zygo.SexpNull, fmt.Errorf("anchor: %w", err)
		}
		return &sexpNodeRef{path: path}, nil
	})

	// -----------------------------------------------------------------------
	// (constrain :point "a@top" "b@bottom" :param 2)
	// -----------------------------------------------------------------------
	env.AddFunction("constrain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 3 {
			return zygo.SexpNull, fmt.Errorf("constrain requires a kind and two feature references")
		}
		kind, err := toKind(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: %w", err)
		}

		pa := parseArgs(args[1:])
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("constrain: expected 2 feature references, got %d", len(pa.positional))
		}
		refA, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: first reference: %w", err)
		}
		refB, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: second reference: %w", err)
		}

		param := kind.DefaultParam()
		if v, ok := pa.kw["param"]; ok {
			param, err = toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("constrain: param: %w", err)
			}
		}
		id, err := a.Constrain(refA, refB, kind, param)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("constrain: %w", err)
		}
		return &zygo.SexpStr{S: id.String()}, nil
	})

	// -----------------------------------------------------------------------
	// (mate "a@top" "b@bottom")
	//
	// Shorthand for a default Plane constraint: the two directions end up
	// opposing, faces mated face-to-face.
	// -----------------------------------------------------------------------
	env.AddFunction("mate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("mate requires exactly 2 feature references, got %d", len(args))
		}
		refA, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mate: first reference: %w", err)
		}
		refB, err := toString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mate: second reference: %w", err)
		}
		id, err := a.Constrain(refA, refB, assembly.Plane)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mate: %w", err)
		}
		return &zygo.SexpStr{S: id.String()}, nil
	})
}
