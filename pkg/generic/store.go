package generic

import (
	"encoding/json"
	"fmt"
	"k8s.io/klog/v2"
	"opcbridge/pkg/runtime"
	"opcbridge/pkg/storage"
	"os"
	"path/filepath"
	"reflect"
)

// Store persists tags as JSON files, one file per tag id.
type Store struct {
	Group        string
	Resource     string
	ResourceType reflect.Type
	client       storage.Storage
}

func NewStore(group string, resource string, resourceType runtime.Tag) (*Store, error) {
	s := &Store{
		Group:        group,
		Resource:     resource,
		ResourceType: getTypeOfResource(resourceType),
	}

	client := &storage.FsClient{}
	client.Init(storage.StoreGroupFromString[group])
	s.client = client

	return s, nil
}

func (s *Store) Create(obj runtime.Tag) (save runtime.Tag, returnErr error) {
	accessor, _ := runtime.Accessor(obj)
	key := filepath.Join(s.Resource, fmt.Sprintf("%s.json", accessor.GetID()))
	if saved, err := s.client.Create(key, obj); err == nil {
		save = saved.(runtime.Tag)
	} else {
		returnErr = err
	}
	return
}

func (s *Store) Update(obj runtime.Tag) (update runtime.Tag, returnErr error) {
	accessor, _ := runtime.Accessor(obj)
	key := filepath.Join(s.Resource, fmt.Sprintf("%s.json", accessor.GetID()))
	if updated, err := s.client.Update(key, accessor.GetVersion(), obj); err == nil {
		update = updated.(runtime.Tag)
	} else {
		returnErr = err
	}
	return
}

func (s *Store) Delete(obj runtime.Tag) (deleted runtime.Tag, returnErr error) {
	accessor, _ := runtime.Accessor(obj)
	key := filepath.Join(s.Resource, fmt.Sprintf("%s.json", accessor.GetID()))
	if _, err := s.client.Delete(key, accessor.GetVersion()); err == nil {
		deleted = obj
	} else {
		returnErr = err
	}
	return
}

func (s *Store) LoadResource() ([]runtime.Tag, error) {
	objs, err := s.client.List(s.Resource)
	if err != nil {
		return nil, err
	}

	var ret []runtime.Tag
	if files, ok := objs.([]*storage.FileInfo); ok {
		for _, file := range files {
			func() {
				obj := reflect.New(s.ResourceType).Interface().(runtime.Tag)
				f, err := os.Open(file.Path)
				if err != nil {
					klog.V(2).InfoS("Failed to open", "file", file.Path, "resource", s.Resource, "err", err)
					return
				}
				defer f.Close()
				if err = json.NewDecoder(f).Decode(obj); err != nil {
					klog.V(3).InfoS("Failed to unmarshal", "file", file.Path, "resource", s.Resource, "err", err)
					return
				}
				ret = append(ret, obj)
			}()
		}
	}
	return ret, nil
}

func getTypeOfResource(obj runtime.Tag) reflect.Type {
	t := reflect.TypeOf(obj)
	if t.Kind() != reflect.Ptr {
		panic("All types must be pointers to structs.")
	}
	t = t.Elem()
	if t.Kind() != reflect.Struct {
		panic("All types must be pointers to structs.")
	}
	return t
}
