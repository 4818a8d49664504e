package utils

import (
	"testing"

	"go.viam.com/test"
)

type sampleAttrs struct {
	K         int     `json:"k"`
	Tolerance float64 `json:"depth_tolerance"`
	Exact     *bool   `json:"exact,omitempty"`
}

func TestTransformAttributeMap(t *testing.T) {
	attrs := AttributeMap{"k": 16.0, "depth_tolerance": 0.1}
	conf, err := TransformAttributeMap[*sampleAttrs](attrs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.K, test.ShouldEqual, 16)
	test.That(t, conf.Tolerance, test.ShouldEqual, 0.1)
	test.That(t, conf.Exact, test.ShouldBeNil)

	byValue, err := TransformAttributeMap[sampleAttrs](AttributeMap{"exact": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *byValue.Exact, test.ShouldBeTrue)

	_, err = TransformAttributeMap[*sampleAttrs](AttributeMap{"kk": 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "kk")
}

func TestAttributeMapAccessors(t *testing.T) {
	attrs := AttributeMap{"a": 2.5, "b": 3, "c": true}
	test.That(t, attrs.Has("a"), test.ShouldBeTrue)
	test.That(t, attrs.Has("z"), test.ShouldBeFalse)
	test.That(t, attrs.Float64("a", 0), test.ShouldEqual, 2.5)
	test.That(t, attrs.Float64("b", 0), test.ShouldEqual, 3.)
	test.That(t, attrs.Int("a", 0), test.ShouldEqual, 2)
	test.That(t, attrs.Int("z", 9), test.ShouldEqual, 9)
	test.That(t, attrs.Bool("c", false), test.ShouldBeTrue)
}
