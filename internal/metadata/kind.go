package metadata

//go:generate go tool stringer -type=Kind,Cardinality -linecomment -output=kind_string.go

// Kind is the closed set of field kinds an entity field can declare.
type Kind int

const (
	KindUnknown  Kind = iota // unknown
	KindString               // string
	KindText                 // text
	KindInt                  // int
	KindSmallInt             // smallint
	KindBigInt               // bigint
	KindDecimal              // decimal
	KindFloat                // float
	KindBoolean              // boolean
	KindDate                 // date
	KindTime                 // time
	KindDatetime             // datetime
	KindJSON                 // json
	KindUUID                 // uuid
	KindEnum                 // enum
	KindIntEnum              // int_enum
	KindSet                  // set
	KindPoint                // point
	KindRange                // range
	KindPolygon              // polygon
	KindRelation             // relation

	// KindTotal is the number of kinds defined
	KindTotal = int(iota)
)

var kindByName = map[string]Kind{
	"string":    KindString,
	"varchar":   KindString,
	"text":      KindText,
	"int":       KindInt,
	"integer":   KindInt,
	"smallint":  KindSmallInt,
	"bigint":    KindBigInt,
	"decimal":   KindDecimal,
	"float":     KindFloat,
	"boolean":   KindBoolean,
	"bool":      KindBoolean,
	"date":      KindDate,
	"time":      KindTime,
	"datetime":  KindDatetime,
	"timestamp": KindDatetime,
	"json":      KindJSON,
	"uuid":      KindUUID,
	"enum":      KindEnum,
	"int_enum":  KindIntEnum,
	"set":       KindSet,
	"point":     KindPoint,
	"range":     KindRange,
	"polygon":   KindPolygon,
}

// ParseKind maps a declared type name to its Kind. Unrecognised names map to
// KindUnknown so that classification, not loading, reports them.
func ParseKind(name string) Kind {
	return kindByName[name]
}

// IsComposite reports whether values of this kind are component tuples.
func (k Kind) IsComposite() bool {
	return k == KindPoint || k == KindRange || k == KindPolygon
}

// IsInteger reports whether the kind stores whole numbers.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt, KindSmallInt, KindBigInt, KindIntEnum:
		return true
	}
	return false
}

// Cardinality of a relation as seen from its owning (source) entity.
type Cardinality int

const (
	CardinalityUnknown          Cardinality = iota // unknown
	CardinalityManyToOne                           // many_to_one
	CardinalityOneToOne                            // one_to_one
	CardinalityReverseOneToMany                    // reverse_one_to_many
	CardinalityReverseOneToOne                     // reverse_one_to_one
	CardinalityManyToMany                          // many_to_many

	// CardinalityTotal is the number of cardinalities defined
	CardinalityTotal = int(iota)
)

var cardinalityByName = map[string]Cardinality{
	"many_to_one":         CardinalityManyToOne,
	"one_to_one":          CardinalityOneToOne,
	"reverse_one_to_many": CardinalityReverseOneToMany,
	"one_to_many":         CardinalityReverseOneToMany,
	"reverse_one_to_one":  CardinalityReverseOneToOne,
	"many_to_many":        CardinalityManyToMany,
}

func ParseCardinality(name string) Cardinality {
	return cardinalityByName[name]
}

// IsForward reports whether the owner stores the foreign key itself.
func (c Cardinality) IsForward() bool {
	return c == CardinalityManyToOne || c == CardinalityOneToOne
}

// IsMulti reports whether the relation holds a list of targets.
func (c Cardinality) IsMulti() bool {
	return c == CardinalityManyToMany || c == CardinalityReverseOneToMany
}
