// Package labels - class-index to name mapping for detector output.
package labels

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Labels maps zero-based class indices to names. The slice position is the
// index the model emits.
type Labels []string

// Name returns the label for index i, or a "class_N" placeholder when the
// index is out of range or the entry is blank.
func (l Labels) Name(i int) string {
	if i >= 0 && i < len(l) && l[i] != "" {
		return l[i]
	}
	return fmt.Sprintf("class_%d", i)
}

// Load reads a label file with one class name per line. Lines are kept in
// file order so they line up with the model's indices; blank lines hold
// their position as placeholders.
func Load(path string) (Labels, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open labels %s", path)
	}
	defer file.Close()

	var names Labels
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read labels %s", path)
	}
	if len(names) == 0 {
		return nil, errors.Errorf("labels %s is empty", path)
	}
	return names, nil
}

// COCO is the 80-class COCO label set, zero-based with no background entry.
// Models trained against a different labelmap should load their own file.
var COCO = Labels{
	"person",
	"bicycle",
	"car",
	"motorcycle",
	"airplane",
	"bus",
	"train",
	"truck",
	"boat",
	"traffic light",
	"fire hydrant",
	"stop sign",
	"parking meter",
	"bench",
	"bird",
	"cat",
	"dog",
	"horse",
	"sheep",
	"cow",
	"elephant",
	"bear",
	"zebra",
	"giraffe",
	"backpack",
	"umbrella",
	"handbag",
	"tie",
	"suitcase",
	"frisbee",
	"skis",
	"snowboard",
	"sports ball",
	"kite",
	"baseball bat",
	"baseball glove",
	"skateboard",
	"surfboard",
	"tennis racket",
	"bottle",
	"wine glass",
	"cup",
	"fork",
	"knife",
	"spoon",
	"bowl",
	"banana",
	"apple",
	"sandwich",
	"orange",
	"broccoli",
	"carrot",
	"hot dog",
	"pizza",
	"donut",
	"cake",
	"chair",
	"couch",
	"potted plant",
	"bed",
	"dining table",
	"toilet",
	"tv",
	"laptop",
	"mouse",
	"remote",
	"keyboard",
	"cell phone",
	"microwave",
	"oven",
	"toaster",
	"sink",
	"refrigerator",
	"book",
	"clock",
	"vase",
	"scissors",
	"teddy bear",
	"hair drier",
	"toothbrush",
}
