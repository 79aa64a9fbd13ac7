package codegen

import (
	"fmt"
	"strings"

	"github.com/rmi-trainer/rmi/rmi"
)

// orderedSet deduplicates strings while preserving first-seen insertion
// order, since Go map iteration order is randomized and the emitter must
// produce byte-identical output across runs (spec §8).
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func keyCType(k rmi.KeyType) string {
	switch k {
	case rmi.KeyTypeU32:
		return "uint32_t"
	case rmi.KeyTypeF64:
		return "double"
	default:
		return "uint64_t"
	}
}

func dataTypeVar(t rmi.DataType) string {
	switch t {
	case rmi.Float:
		return "fpred"
	case rmi.Int128:
		return "i128pred"
	default:
		return "ipred"
	}
}

func dataTypeDecl(t rmi.DataType) string {
	switch t {
	case rmi.Float:
		return "double fpred;"
	case rmi.Int128:
		return "unsigned __int128 i128pred;"
	default:
		return "uint64_t ipred;"
	}
}

// modelIndexFromOutput emits the expression that clamps a layer's raw
// prediction into the next layer's index range, per codegen.rs's
// model_index_from_output! macro.
func modelIndexFromOutput(from rmi.DataType, bound uint64, needsCheck bool) string {
	v := dataTypeVar(from)
	if !needsCheck {
		if from == rmi.Float {
			return "(uint64_t) fpred"
		}
		return v
	}
	switch from {
	case rmi.Float:
		return fmt.Sprintf("FCLAMP(fpred, %d.0 - 1.0)", bound)
	default:
		return fmt.Sprintf("(%s > %d - 1 ? %d - 1 : %s)", v, bound, bound, v)
	}
}

func stdFunctionDecl(f rmi.StdFunction) string {
	switch f {
	case rmi.StdBinarySearch:
		return "template <class ForwardIt, class T>\ninline size_t bs_upper_bound(ForwardIt first, size_t n, const T& key);"
	case rmi.StdExp1:
		return "inline double exp1(double x);"
	default:
		return ""
	}
}

func stdFunctionCode(f rmi.StdFunction) string {
	switch f {
	case rmi.StdBinarySearch:
		return `
template <class ForwardIt, class T>
inline size_t bs_upper_bound(ForwardIt first, size_t n, const T& key) {
    size_t lo = 0, hi = n;
    while (lo < hi) {
        size_t mid = lo + (hi - lo) / 2;
        if (first[mid] <= key) lo = mid + 1; else hi = mid;
    }
    return lo;
}`
	case rmi.StdExp1:
		return `
inline double exp1(double x) {
    x = 1.0 + x / 64.0;
    x *= x; x *= x; x *= x; x *= x; x *= x; x *= x;
    return x;
}`
	default:
		return ""
	}
}

// Generated holds the three emitted source artifacts plus one on-disk
// blob per non-constant layer, keyed by its file name (without the
// namespace-prefixed directory).
type Generated struct {
	CPP    string
	Header string
	DataH  string
	Blobs  map[string][]byte // "{ns}_L{idx}_PARAMETERS" -> raw bytes
}

// Generate packs trained's layers and synthesizes the lookup() function
// for namespace ns. buildTimeNS is stamped into BUILD_TIME_NS. The emitted
// load() routine takes the data directory as its runtime argument; Generate
// writes nothing to disk (callers such as EmitToDisk write Blobs
// themselves).
// Grounded on codegen.rs's generate_code/output_rmi.
func Generate(ns string, trained *rmi.TrainedRMI, buildTimeNS uint64, keyType rmi.KeyType, includeErrors bool) (*Generated, error) {
	if len(trained.Layers) == 0 {
		return nil, fmt.Errorf("codegen: trained RMI has no layers")
	}

	layerParamsList := make([]layerParams, len(trained.Layers))
	for i, layer := range trained.Layers {
		if len(layer) == 0 {
			return nil, fmt.Errorf("codegen: layer %d has no models", i)
		}
		layerParamsList[i] = paramsForLayer(i, layer)
	}

	reportLLE := includeErrors
	var lleSnippet string
	if reportLLE {
		lle := trained.LastLayerMaxL1s
		if len(lle) == 0 {
			return nil, fmt.Errorf("codegen: last_layer_errors requested but no error vector was recorded")
		}
		if len(lle) > 1 {
			last := layerParamsList[len(layerParamsList)-1]
			zipped := last.withZippedErrors(lle)
			var b strings.Builder
			b.WriteString("  *err = ")
			zipped.accessByRef(&b, "modelIndex", zipped.paramsPerModel-1)
			b.WriteString(";\n")
			lleSnippet = b.String()
			layerParamsList[len(layerParamsList)-1] = zipped
		} else {
			lleSnippet = fmt.Sprintf("  *err = %d;", lle[0])
		}
	}

	dataH, blobs := emitDataHeader(ns, layerParamsList)
	header := emitHeader(ns, trained, reportLLE, keyType, buildTimeNS)
	cpp, err := emitCPP(ns, trained, layerParamsList, reportLLE, lleSnippet, keyType)
	if err != nil {
		return nil, err
	}

	return &Generated{CPP: cpp, Header: header, DataH: dataH, Blobs: blobs}, nil
}

func emitDataHeader(ns string, layers []layerParams) (string, map[string][]byte) {
	var b strings.Builder
	blobs := make(map[string][]byte)

	fmt.Fprintf(&b, "namespace %s {\n", ns)
	for _, lp := range layers {
		switch lp.mode {
		case modeConstant:
			lp.toCode(&b)
		case modeArray, modeMixedArray:
			lp.toDecl(&b)
			blobs[fmt.Sprintf("%s_%s", ns, arrayName(lp.index))] = lp.writeTo()
		}
	}
	b.WriteString("} // namespace\n")
	return b.String(), blobs
}

func emitHeader(ns string, trained *rmi.TrainedRMI, reportLLE bool, keyType rmi.KeyType, buildTimeNS uint64) string {
	var b strings.Builder
	b.WriteString("#include <cstddef>\n#include <cstdint>\n")
	fmt.Fprintf(&b, "namespace %s {\n", ns)
	b.WriteString("bool load(char const* dataPath);\n")
	b.WriteString("void cleanup();\n")
	if !reportLLE {
		b.WriteString("#ifdef EXTERN_RMI_LOOKUP\n")
		b.WriteString("extern \"C\" uint64_t lookup(uint64_t key);\n")
		b.WriteString("#endif\n")
	}
	fmt.Fprintf(&b, "const size_t RMI_SIZE = %d;\n", trained.SizeBytes(reportLLE))
	fmt.Fprintf(&b, "const uint64_t BUILD_TIME_NS = %d;\n", buildTimeNS)
	fmt.Fprintf(&b, "const char NAME[] = \"%s\";\n", ns)
	b.WriteString(lookupSignature(reportLLE, keyType) + ";\n")
	b.WriteString("}\n")
	return b.String()
}

func lookupSignature(reportLLE bool, keyType rmi.KeyType) string {
	if reportLLE {
		return fmt.Sprintf("uint64_t lookup(%s key, size_t* err)", keyCType(keyType))
	}
	return fmt.Sprintf("uint64_t lookup(%s key)", keyCType(keyType))
}

func emitCPP(ns string, trained *rmi.TrainedRMI, layers []layerParams, reportLLE bool, lleSnippet string, keyType rmi.KeyType) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "#include \"%s.h\"\n#include \"%s_data.h\"\n", ns, ns)
	b.WriteString("#include <math.h>\n#include <cmath>\n#include <fstream>\n#include <filesystem>\n#include <iostream>\n")
	fmt.Fprintf(&b, "namespace %s {\n", ns)

	emitLoadAndCleanup(&b, ns, layers)

	// Standard-function helpers and model bodies are deduplicated but kept
	// in first-seen order (not map-iteration order) so emitted code is
	// byte-identical across runs over the same (dataset, config), per
	// spec §8's emission-determinism invariant.
	var decls, sigs orderedSet
	for _, layer := range trained.Layers {
		fns := layer[0].StandardFunctions()
		for _, f := range []rmi.StdFunction{rmi.StdBinarySearch, rmi.StdExp1} {
			if fns[f] {
				decls.add(stdFunctionDecl(f))
				sigs.add(stdFunctionCode(f))
			}
		}
	}
	for _, d := range decls.items {
		b.WriteString(d + "\n")
	}
	for _, s := range sigs.items {
		b.WriteString(s + "\n")
	}

	var modelSigs orderedSet
	for _, layer := range trained.Layers {
		modelSigs.add(layer[0].Code())
	}
	for _, s := range modelSigs.items {
		b.WriteString(s + "\n")
	}

	b.WriteString("\ninline size_t FCLAMP(double inp, double bound) {\n  if (inp < 0.0) return 0;\n  return (inp > bound ? bound : (size_t)inp);\n}\n\n")

	sig := lookupSignature(reportLLE, keyType)
	fmt.Fprintf(&b, "%s {\n", sig)

	var neededVars orderedSet
	if len(trained.Layers) > 1 {
		neededVars.add("size_t modelIndex;")
	}
	for _, layer := range trained.Layers {
		neededVars.add(dataTypeDecl(layer[0].OutputType()))
	}
	for _, v := range neededVars.items {
		fmt.Fprintf(&b, "  %s\n", v)
	}

	lastOutput := keyTypeToModelData(keyType)
	needsBoundsCheck := true

	for layerIdx, layer := range trained.Layers {
		lp := layers[layerIdx]
		required := layer[0].InputType()
		out := layer[0].OutputType()
		varName := dataTypeVar(out)
		numParams := len(layer[0].Params())

		if len(layer) == 1 {
			fmt.Fprintf(&b, "  %s = %s(", varName, layer[0].FunctionName())
			for pidx := 0; pidx < numParams; pidx++ {
				lp.accessByConst(&b, pidx)
				b.WriteString(", ")
			}
		} else {
			fmt.Fprintf(&b, "  modelIndex = %s;\n", modelIndexFromOutput(lastOutput, uint64(len(layer)), needsBoundsCheck))
			fmt.Fprintf(&b, "  %s = %s(", varName, layer[0].FunctionName())
			for pidx := 0; pidx < numParams; pidx++ {
				lp.accessByRef(&b, "modelIndex", pidx)
				b.WriteString(", ")
			}
		}
		fmt.Fprintf(&b, "(%s)key);\n", requiredCType(required))

		lastOutput = out
		needsBoundsCheck = layer[0].NeedsBoundsCheck()
	}

	if lleSnippet != "" {
		b.WriteString(lleSnippet + "\n")
	}

	fmt.Fprintf(&b, "  return %s;\n", modelIndexFromOutput(lastOutput, uint64(trained.NumDataRows), true))
	b.WriteString("}\n")
	b.WriteString("} // namespace\n")
	return b.String(), nil
}

func emitLoadAndCleanup(b *strings.Builder, ns string, layers []layerParams) {
	b.WriteString("bool load(char const* dataPath) {\n")
	for _, lp := range layers {
		if lp.mode == modeConstant {
			continue
		}
		fn := arrayName(lp.index)
		b.WriteString("  {\n")
		fmt.Fprintf(b, "    std::ifstream infile(std::filesystem::path(dataPath) / \"%s_%s\", std::ios::in | std::ios::binary);\n", ns, fn)
		b.WriteString("    if (!infile.good()) return false;\n")
		if lp.requiresMalloc() {
			fmt.Fprintf(b, "    %s = (%s*) malloc(%d);\n", fn, lp.pointerType(), lp.size())
			fmt.Fprintf(b, "    if (%s == NULL) return false;\n", fn)
		}
		fmt.Fprintf(b, "    infile.read((char*)%s, %d);\n", fn, lp.size())
		b.WriteString("    if (!infile.good()) return false;\n")
		b.WriteString("  }\n")
	}
	b.WriteString("  return true;\n}\n")

	b.WriteString("void cleanup() {\n")
	for _, lp := range layers {
		if !lp.requiresMalloc() {
			continue
		}
		fmt.Fprintf(b, "    free(%s);\n", arrayName(lp.index))
	}
	b.WriteString("}\n")
}

func requiredCType(t rmi.DataType) string {
	if t == rmi.Float {
		return "double"
	}
	return "uint64_t"
}

func keyTypeToModelData(k rmi.KeyType) rmi.DataType {
	if k == rmi.KeyTypeF64 {
		return rmi.Float
	}
	return rmi.Int
}
