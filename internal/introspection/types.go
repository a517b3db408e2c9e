package introspection

import (
	"github.com/hanpama/gqlforge/internal/blueprint"
)

func ref(s string) *blueprint.TypeRef {
	t, err := blueprint.ParseTypeRef(s)
	if err != nil {
		panic(err)
	}
	return t
}

func field(name, typ, desc string, args ...*blueprint.InputValue) *blueprint.FieldDefinition {
	return &blueprint.FieldDefinition{Name: name, Type: ref(typ), Description: desc, Args: args}
}

var includeDeprecated = &blueprint.InputValue{Name: "includeDeprecated", Type: ref("Boolean"), DefaultValue: false}

// metaTypes are the __ types every schema exposes.
func metaTypes() []*blueprint.Type {
	schema := blueprint.NewType("__Schema", blueprint.TypeKindObject,
		field("description", "String", ""),
		field("types", "[__Type!]!", "A list of all types supported by this server."),
		field("queryType", "__Type!", "The type that query operations will be rooted at."),
		field("mutationType", "__Type", "If this server supports mutation, the type that mutation operations will be rooted at."),
		field("subscriptionType", "__Type", "If this server support subscription, the type that subscription operations will be rooted at."),
		field("directives", "[__Directive!]!", "A list of all directives supported by this server."),
	)
	schema.Description = "A GraphQL Schema defines the capabilities of a GraphQL server."

	typ := blueprint.NewType("__Type", blueprint.TypeKindObject,
		field("kind", "__TypeKind!", ""),
		field("name", "String", ""),
		field("description", "String", ""),
		field("specifiedByURL", "String", ""),
		field("fields", "[__Field!]", "", includeDeprecated),
		field("interfaces", "[__Type!]", ""),
		field("possibleTypes", "[__Type!]", ""),
		field("enumValues", "[__EnumValue!]", "", includeDeprecated),
		field("inputFields", "[__InputValue!]", "", includeDeprecated),
		field("ofType", "__Type", ""),
		field("isOneOf", "Boolean", ""),
	)
	typ.Description = "The fundamental unit of any GraphQL Schema is the type."

	return []*blueprint.Type{
		schema,
		typ,
		blueprint.NewType("__Field", blueprint.TypeKindObject,
			field("name", "String!", ""),
			field("description", "String", ""),
			field("args", "[__InputValue!]!", "", includeDeprecated),
			field("type", "__Type!", ""),
			field("isDeprecated", "Boolean!", ""),
			field("deprecationReason", "String", ""),
		),
		blueprint.NewType("__InputValue", blueprint.TypeKindObject,
			field("name", "String!", ""),
			field("description", "String", ""),
			field("type", "__Type!", ""),
			field("defaultValue", "String", "A GraphQL-formatted string representing the default value for this input value."),
			field("isDeprecated", "Boolean!", ""),
			field("deprecationReason", "String", ""),
		),
		blueprint.NewType("__EnumValue", blueprint.TypeKindObject,
			field("name", "String!", ""),
			field("description", "String", ""),
			field("isDeprecated", "Boolean!", ""),
			field("deprecationReason", "String", ""),
		),
		blueprint.NewType("__Directive", blueprint.TypeKindObject,
			field("name", "String!", ""),
			field("description", "String", ""),
			field("isRepeatable", "Boolean!", ""),
			field("locations", "[__DirectiveLocation!]!", ""),
			field("args", "[__InputValue!]!", "", includeDeprecated),
		),
		{
			Name: "__TypeKind",
			Kind: blueprint.TypeKindEnum,
			EnumValues: []string{
				"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL",
			},
		},
		{
			Name: "__DirectiveLocation",
			Kind: blueprint.TypeKindEnum,
			EnumValues: []string{
				"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
				"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
				"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
				"INPUT_FIELD_DEFINITION",
			},
		},
	}
}
