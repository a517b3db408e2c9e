// Package protoreg loads the protobuf descriptors referenced by Protobuf
// links and resolves gRPC methods by name.
package protoreg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/hanpama/gqlforge/internal/config"
)

// Registry indexes the unary and streaming methods of every service in a
// set of file descriptors.
type Registry struct {
	files   []protoreflect.FileDescriptor
	methods map[string]protoreflect.MethodDescriptor
}

// New indexes the given files.
func New(files ...protoreflect.FileDescriptor) *Registry {
	r := &Registry{methods: make(map[string]protoreflect.MethodDescriptor)}
	for _, fd := range files {
		r.files = append(r.files, fd)
		services := fd.Services()
		for i := 0; i < services.Len(); i++ {
			methods := services.Get(i).Methods()
			for j := 0; j < methods.Len(); j++ {
				md := methods.Get(j)
				r.methods[string(md.FullName())] = md
			}
		}
	}
	return r
}

// Load reads every Protobuf link. Sources ending in .proto are compiled;
// anything else is read as a serialized FileDescriptorSet.
func Load(ctx context.Context, links []config.Link) (*Registry, error) {
	var files []protoreflect.FileDescriptor
	for _, link := range links {
		if link.Type != config.LinkProtobuf {
			continue
		}
		var (
			fds []protoreflect.FileDescriptor
			err error
		)
		if strings.HasSuffix(link.Src, ".proto") {
			fds, err = compileProto(ctx, link.Src)
		} else {
			fds, err = readDescriptorSet(link.Src)
		}
		if err != nil {
			return nil, fmt.Errorf("load protobuf link %q: %w", link.Src, err)
		}
		files = append(files, fds...)
	}
	return New(files...), nil
}

func compileProto(ctx context.Context, path string) ([]protoreflect.FileDescriptor, error) {
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: []string{filepath.Dir(path)},
		}),
	}
	compiled, err := compiler.Compile(ctx, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	out := make([]protoreflect.FileDescriptor, 0, len(compiled))
	for _, f := range compiled {
		out = append(out, f)
	}
	return out, nil
}

func readDescriptorSet(path string) ([]protoreflect.FileDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode descriptor set: %w", err)
	}
	reg, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, err
	}
	var out []protoreflect.FileDescriptor
	reg.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		out = append(out, fd)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out, nil
}

// FindMethod resolves "package.Service.Method" or "package.Service/Method".
func (r *Registry) FindMethod(fullName string) (protoreflect.MethodDescriptor, error) {
	name := strings.TrimPrefix(fullName, "/")
	name = strings.Replace(name, "/", ".", 1)
	md, ok := r.methods[name]
	if !ok {
		return nil, fmt.Errorf("method %q not found", fullName)
	}
	return md, nil
}

// Files returns the loaded file descriptors in load order.
func (r *Registry) Files() []protoreflect.FileDescriptor {
	return r.files
}

// Methods returns the full names of every indexed method, sorted.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
